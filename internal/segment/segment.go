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

/*
Package segment partitions a beat sequence into tempo segments that Serato can
render.

Serato places the beats between a marker and the next one evenly:

	beat[k] = pos + k*(nextPos-pos)/beats

so a segment is verified against that grid, pinned at both of its end beats,
and not against a regression line.
*/
package segment

import (
	"log/slog"
	"math"

	"github.com/goccmack/beatgrid/internal/serato"
)

// Params holds the segmentation thresholds.
type Params struct {
	Drift            float64 // seconds, interior beat tolerance
	MinBeats         int     // segments shorter than this may be outliers
	OutlierPct       float64 // BPM deviation in percent that makes a short segment an outlier
	ConsolidatePct   float64 // BPM deviation in percent of a "normal" segment
	NormalRatio      float64 // fraction of beats in normal segments needed to consolidate
	ConsolidateDrift float64 // seconds
	MaxMarkers       int
	Relax            float64 // drift multiplier per attempt
	MaxAttempts      int
}

// DefaultParams returns the default segmentation thresholds.
func DefaultParams() Params {
	return Params{
		Drift:            0.020,
		MinBeats:         8,
		OutlierPct:       5,
		ConsolidatePct:   1.5,
		NormalRatio:      0.85,
		ConsolidateDrift: 0.040,
		MaxMarkers:       serato.MaxMarkers,
		Relax:            1.5,
		MaxAttempts:      10,
	}
}

// Segment is a run of beats rendered from one marker.
// Beats == EndBeat - StartBeat except for the single beat placeholder.
type Segment struct {
	StartBeat int
	EndBeat   int
	Start     float64 // seconds
	BPM       float64
	Beats     int
}

// Result is a segmentation and the drift tolerance it was built with.
type Result struct {
	Segments  []Segment
	Tolerance float64
}

/*
Build segments beats. When the segmentation needs more than MaxMarkers markers
the drift tolerance is relaxed by Relax and the beats are segmented again, at
most MaxAttempts times. The last attempt is returned even if it still exceeds
the cap.
*/
func Build(beats []float64, p Params) Result {
	switch len(beats) {
	case 0:
		return Result{Tolerance: p.Drift}
	case 1:
		return Result{
			Segments:  []Segment{{Start: beats[0], BPM: 120, Beats: 1}},
			Tolerance: p.Drift,
		}
	}

	tol := p.Drift
	segs := segmentOnce(beats, tol, p)
	for attempt := 0; len(segs) > p.MaxMarkers && attempt < p.MaxAttempts; attempt++ {
		tol *= p.Relax
		slog.Debug("too many segments, relaxing drift", "segments", len(segs), "drift_ms", tol*1000)
		segs = segmentOnce(beats, tol, p)
	}
	slog.Debug("segmented beats", "beats", len(beats), "segments", len(segs), "drift_ms", tol*1000)
	return Result{Segments: segs, Tolerance: tol}
}

func segmentOnce(beats []float64, tol float64, p Params) []Segment {
	segs := initial(beats, tol)
	segs = bridge(segs, beats, tol, p)
	return consolidate(segs, beats, p)
}

// initial greedily extends each segment as far as the interpolation rule holds.
func initial(beats []float64, tol float64) []Segment {
	var segs []Segment
	for start := 0; start < len(beats)-1; {
		end := start + 1
		for cand := start + 2; cand < len(beats); cand++ {
			if maxDrift(beats, start, cand, -1, -1) > tol {
				break
			}
			end = cand
		}
		segs = append(segs, newSegment(beats, start, end))
		start = end
	}
	return segs
}

/*
bridge replaces runs of outlier segments. An outlier has fewer than MinBeats
beats and an implicit BPM more than OutlierPct away from the weighted average.
The segment before a run is extended to the start of the segment after it when
the non-outlier beats of the extended span stay within twice the tolerance.
Otherwise a run of several outliers is combined into one transition segment.
*/
func bridge(segs []Segment, beats []float64, tol float64, p Params) []Segment {
	if len(segs) <= 1 {
		return segs
	}
	avg, ok := weightedBPM(segs)
	if !ok {
		return segs
	}
	outlier := make([]bool, len(segs))
	for i, s := range segs {
		outlier[i] = s.Beats < p.MinBeats && deviation(s.BPM, avg) > p.OutlierPct
	}

	var out []Segment
	for i := 0; i < len(segs); {
		if !outlier[i] {
			out = append(out, segs[i])
			i++
			continue
		}
		j := i
		for j < len(segs) && outlier[j] {
			j++
		}

		bridged := false
		if len(out) > 0 && j < len(segs) {
			prev := &out[len(out)-1]
			from, to := prev.StartBeat, segs[j].StartBeat
			if to-from >= 2 && maxDrift(beats, from, to, segs[i].StartBeat, segs[j-1].EndBeat) <= 2*tol {
				*prev = newSegment(beats, from, to)
				bridged = true
				slog.Debug("bridged outlier segments", "count", j-i, "from", segs[i].Start, "to", segs[j-1].Start)
			}
		}
		if !bridged {
			if j-i > 1 {
				out = append(out, newSegment(beats, segs[i].StartBeat, segs[j-1].EndBeat))
				slog.Debug("combined outlier segments", "count", j-i, "bpm", out[len(out)-1].BPM)
			} else {
				out = append(out, segs[i])
			}
		}
		i = j
	}
	return out
}

/*
consolidate replaces all segments with one when at least NormalRatio of the
beats lie in segments within ConsolidatePct of the weighted average BPM and
none of those beats drifts more than ConsolidateDrift from a grid pinned at
the first and last beat.
*/
func consolidate(segs []Segment, beats []float64, p Params) []Segment {
	if len(segs) <= 1 {
		return segs
	}
	avg, ok := weightedBPM(segs)
	if !ok {
		return segs
	}
	total, normal := 0, 0
	for _, s := range segs {
		total += s.Beats
		if deviation(s.BPM, avg) <= p.ConsolidatePct {
			normal += s.Beats
		}
	}
	if float64(normal)/float64(total) < p.NormalRatio {
		return segs
	}

	start, end := segs[0].StartBeat, segs[len(segs)-1].EndBeat
	n := end - start
	if n <= 0 || beats[end]-beats[start] <= 0 {
		return segs
	}
	skip := make(map[int]bool)
	for _, s := range segs {
		if deviation(s.BPM, avg) > p.ConsolidatePct {
			for k := s.StartBeat; k <= s.EndBeat; k++ {
				skip[k] = true
			}
		}
	}
	step := (beats[end] - beats[start]) / float64(n)
	var drift float64
	for k := 1; k < n; k++ {
		if skip[start+k] {
			continue
		}
		drift = math.Max(drift, math.Abs(beats[start+k]-(beats[start]+float64(k)*step)))
	}
	if drift > p.ConsolidateDrift {
		slog.Debug("not consolidating", "segments", len(segs), "drift_ms", drift*1000)
		return segs
	}
	slog.Debug("consolidated constant tempo", "segments", len(segs), "avg_bpm", avg, "drift_ms", drift*1000)
	return []Segment{newSegment(beats, start, end)}
}

func newSegment(beats []float64, start, end int) Segment {
	return Segment{
		StartBeat: start,
		EndBeat:   end,
		Start:     beats[start],
		BPM:       ImplicitBPM(beats, start, end),
		Beats:     end - start,
	}
}

// ImplicitBPM is the tempo Serato derives for beats[start..end]: 60 * beats / span.
// It is 120 for an empty or non-positive span.
func ImplicitBPM(beats []float64, start, end int) float64 {
	if end <= start {
		return 120
	}
	span := beats[end] - beats[start]
	if span <= 0 {
		return 120
	}
	return 60 * float64(end-start) / span
}

/*
maxDrift returns the largest distance of an interior beat of beats[start..end]
from the even grid pinned at both ends. Beats with index in [skipFrom, skipTo]
are ignored.
*/
func maxDrift(beats []float64, start, end, skipFrom, skipTo int) float64 {
	n := end - start
	if n < 2 {
		return 0
	}
	step := (beats[end] - beats[start]) / float64(n)
	var d float64
	for k := 1; k < n; k++ {
		i := start + k
		if i >= skipFrom && i <= skipTo {
			continue
		}
		d = math.Max(d, math.Abs(beats[i]-(beats[start]+float64(k)*step)))
	}
	return d
}

func weightedBPM(segs []Segment) (float64, bool) {
	var sum float64
	total := 0
	for _, s := range segs {
		sum += s.BPM * float64(s.Beats)
		total += s.Beats
	}
	if total == 0 || sum == 0 {
		return 0, false
	}
	return sum / float64(total), true
}

// deviation is the distance of bpm from avg in percent of avg.
func deviation(bpm, avg float64) float64 {
	return math.Abs(bpm-avg) / avg * 100
}

/*
Markers converts segments to Serato markers. Every marker but the last carries
its beat count, the last one its BPM.
*/
func Markers(segs []Segment) []serato.Marker {
	m := make([]serato.Marker, len(segs))
	for i, s := range segs {
		m[i].Position = float32(s.Start)
		if i == len(segs)-1 {
			m[i].BPM = float32(s.BPM)
		} else {
			m[i].Beats = uint32(s.Beats)
		}
	}
	return m
}
