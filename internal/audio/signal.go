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

// Package audio holds the decoded mono sample buffer used for local energy
// and peak measurements, and the loaders that produce it.
package audio

import "math"

// DefaultSampleRate is the rate non-WAV input is decoded at.
const DefaultSampleRate = 44100

// Signal is a mono sample buffer normalised to [-1, 1].
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the signal in seconds.
func (s *Signal) Duration() float64 {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Index returns the sample index of time t, which may be out of range.
func (s *Signal) Index(t float64) int {
	return int(t * float64(s.SampleRate))
}

/*
RMS returns the root mean square of the samples in [t-halfWindow, t+halfWindow).
It returns 0 when the window lies entirely outside the signal.
*/
func (s *Signal) RMS(t, halfWindow float64) float64 {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	i := s.Index(t)
	w := int(halfWindow * float64(s.SampleRate))
	lo, hi := clamp(i-w, len(s.Samples)), clamp(i+w, len(s.Samples))
	if hi <= lo {
		return 0
	}
	var sum float64
	for _, x := range s.Samples[lo:hi] {
		sum += x * x
	}
	return math.Sqrt(sum / float64(hi-lo))
}

/*
PeakOffset returns the offset in seconds from t to the sample of maximum
absolute amplitude in [t, t+window). ok is false when t is outside the signal.
*/
func (s *Signal) PeakOffset(t, window float64) (offset float64, ok bool) {
	if s == nil || s.SampleRate <= 0 {
		return 0, false
	}
	start := s.Index(t)
	if start < 0 || start >= len(s.Samples) {
		return 0, false
	}
	end := clamp(start+int(window*float64(s.SampleRate)), len(s.Samples))
	best, bestAbs := start, -1.0
	for i := start; i < end; i++ {
		if a := math.Abs(s.Samples[i]); a > bestAbs {
			best, bestAbs = i, a
		}
	}
	return float64(best-start) / float64(s.SampleRate), true
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
