//  Copyright 2019 Marius Ackerman
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package serato

import "math"

// DefaultMaxBeats bounds every reconstruction.
const DefaultMaxBeats = 100000

/*
Reconstruct expands markers into the beat positions Serato renders.

Between a marker and the next one with N beats, the beats are at
pos + k*(next-pos)/N for k = 0..N-1. The last marker extrapolates at 60/BPM.
No beat later than duration is produced, and at most maxBeats beats are
produced. A non-positive duration means no time bound. maxBeats is clamped
to DefaultMaxBeats. A last marker without a finite positive BPM gives a
single beat.
*/
func Reconstruct(markers []Marker, duration float64, maxBeats int) []float64 {
	if maxBeats <= 0 || maxBeats > DefaultMaxBeats {
		maxBeats = DefaultMaxBeats
	}
	full := func(beats []float64) bool {
		return len(beats) >= maxBeats
	}
	late := func(t float64) bool {
		return duration > 0 && t > duration
	}

	var beats []float64
	for i, m := range markers {
		pos := float64(m.Position)
		if full(beats) || late(pos) {
			break
		}
		if i < len(markers)-1 {
			if m.Beats == 0 {
				continue
			}
			step := (float64(markers[i+1].Position) - pos) / float64(m.Beats)
			for k := 0; k < int(m.Beats) && !full(beats); k++ {
				t := pos + float64(k)*step
				if late(t) {
					break
				}
				beats = append(beats, t)
			}
			continue
		}

		bpm := float64(m.BPM)
		if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
			beats = append(beats, pos)
			break
		}
		step := 60 / bpm
		for k := 0; !full(beats); k++ {
			t := pos + float64(k)*step
			if late(t) {
				break
			}
			beats = append(beats, t)
		}
	}
	return beats
}
