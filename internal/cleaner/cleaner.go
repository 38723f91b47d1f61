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
Package cleaner repairs a raw beat sequence from a beat tracker: it trims weak
leading beats, extrapolates leading beats the tracker missed, and removes false
detections that break an otherwise regular beat pattern.

Every function returns a new slice and leaves its input untouched.
*/
package cleaner

import (
	"log/slog"
	"math"
	"sort"

	"github.com/goccmack/beatgrid/internal/audio"
	"github.com/goccmack/beatgrid/internal/stats"
)

// Params holds the cleaning thresholds.
type Params struct {
	// EnergyWindow is the half width in seconds of the RMS window around a beat.
	EnergyWindow float64
	// WeakRatio is the fraction of the reference energy a leading beat needs.
	WeakRatio float64
	// ExtrapolateRatio is the fraction of the first beat's energy an
	// extrapolated beat needs.
	ExtrapolateRatio float64
	// LeadingGaps is the number of leading gaps used to estimate the interval.
	LeadingGaps int
	// Tolerance is the relative interval tolerance for false detections.
	Tolerance float64
	// Epsilon is the minimum spacing of two beats in seconds.
	Epsilon float64
}

// DefaultParams returns the default cleaning thresholds.
func DefaultParams() Params {
	return Params{
		EnergyWindow:     0.05,
		WeakRatio:        0.20,
		ExtrapolateRatio: 0.25,
		LeadingGaps:      8,
		Tolerance:        0.20,
		Epsilon:          0.0005,
	}
}

// Clean runs all cleaning steps in order. sig may be nil, in which case the
// energy based steps leave the sequence unchanged.
func Clean(beats []float64, sig *audio.Signal, p Params) []float64 {
	out := Dedupe(beats, p.Epsilon)
	out = TrimWeakLeading(out, sig, p)
	out = ExtrapolateLeading(out, sig, p)
	out = RemoveFalse(out, p)
	slog.Debug("cleaned beats", "in", len(beats), "out", len(out))
	return out
}

// Dedupe drops every beat that is not at least eps later than the last kept beat.
func Dedupe(beats []float64, eps float64) []float64 {
	out := make([]float64, 0, len(beats))
	for _, b := range beats {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			continue
		}
		if len(out) == 0 || b > out[len(out)-1]+eps {
			out = append(out, b)
		}
	}
	return out
}

/*
TrimWeakLeading drops the beats before the first beat whose RMS energy reaches
WeakRatio of the reference energy, the median RMS of the louder half of all
beats. Nothing is trimmed when no beat reaches the threshold.
*/
func TrimWeakLeading(beats []float64, sig *audio.Signal, p Params) []float64 {
	out := append([]float64(nil), beats...)
	if len(beats) == 0 || !hasAudio(sig) {
		return out
	}
	energy := make([]float64, len(beats))
	for i, b := range beats {
		energy[i] = sig.RMS(b, p.EnergyWindow)
	}
	sorted := append([]float64(nil), energy...)
	sort.Float64s(sorted)
	ref := stats.Median(sorted[len(sorted)/2:])
	threshold := p.WeakRatio * ref

	for i, e := range energy {
		if e >= threshold {
			if i > 0 {
				slog.Debug("trimmed weak leading beats", "count", i, "first", beats[i])
			}
			return out[i:]
		}
	}
	return out
}

/*
ExtrapolateLeading prepends beats one local interval before the first beat
while the candidate is inside the signal and its energy reaches
ExtrapolateRatio of the first beat's energy. The interval is the median of the
first LeadingGaps gaps.
*/
func ExtrapolateLeading(beats []float64, sig *audio.Signal, p Params) []float64 {
	out := append([]float64(nil), beats...)
	if len(beats) < 2 || !hasAudio(sig) {
		return out
	}
	n := p.LeadingGaps
	if n > len(beats)-1 {
		n = len(beats) - 1
	}
	interval := stats.Median(stats.Diff(beats[:n+1]))
	if interval <= p.Epsilon {
		return out
	}
	ref := sig.RMS(beats[0], p.EnergyWindow)
	if ref <= 0 {
		return out
	}
	minEnergy := p.ExtrapolateRatio * ref

	var lead []float64
	for first := beats[0]; ; {
		c := first - interval
		if c < 0 || c >= sig.Duration() || sig.RMS(c, p.EnergyWindow) < minEnergy {
			break
		}
		lead = append(lead, c)
		first = c
	}
	if len(lead) == 0 {
		return out
	}
	slog.Debug("extrapolated leading beats", "count", len(lead), "first", lead[len(lead)-1])
	pre := make([]float64, 0, len(lead)+len(out))
	for i := len(lead) - 1; i >= 0; i-- {
		pre = append(pre, lead[i])
	}
	return append(pre, out...)
}

/*
RemoveFalse removes false detections. Beat i (excluding the first and last) is
removed when one of its neighbouring intervals is out of tolerance of the
median interval while the interval skipping i is within it, or when both
neighbouring intervals are short and together span about two median intervals.
When removing the next beat instead would leave a skip interval closer to the
median, the next beat is examined first. After a removal the scan resumes at
the first deferred beat, or at the same index.

Passes are repeated, each with a fresh median, until one removes nothing, so
RemoveFalse(RemoveFalse(b)) equals RemoveFalse(b).
*/
func RemoveFalse(beats []float64, p Params) []float64 {
	out := append([]float64(nil), beats...)
	for {
		n := len(out)
		out = removePass(out, p)
		if len(out) == n {
			return out
		}
	}
}

// removePass makes one removal pass over out in place.
func removePass(out []float64, p Params) []float64 {
	if len(out) < 3 {
		return out
	}
	median := stats.Median(stats.Diff(out))
	if median <= 0 {
		return out
	}

	back := -1 // first index deferred to its successor
	for i := 1; i < len(out)-1; {
		bad, skip := falseDetection(out, i, median, p.Tolerance)
		if !bad {
			i, back = i+1, -1
			continue
		}
		if i+1 < len(out)-1 {
			if nextBad, nextSkip := falseDetection(out, i+1, median, p.Tolerance); nextBad &&
				math.Abs(nextSkip-median) < math.Abs(skip-median) {
				if back < 0 {
					back = i
				}
				i++
				continue
			}
		}
		slog.Debug("removed false detection", "position", out[i])
		out = append(out[:i], out[i+1:]...)
		if back >= 0 {
			i, back = back, -1
		}
	}
	return out
}

// falseDetection reports whether beat i breaks the beat pattern and returns
// the interval that skips it.
func falseDetection(b []float64, i int, median, tol float64) (bool, float64) {
	prev := b[i] - b[i-1]
	next := b[i+1] - b[i]
	skip := b[i+1] - b[i-1]
	within := func(x, target float64) bool {
		return math.Abs(x-target) <= tol*target
	}
	if (!within(prev, median) || !within(next, median)) && within(skip, median) {
		return true, skip
	}
	short := median * (1 - tol)
	if prev < short && next < short && within(skip, 2*median) {
		return true, skip
	}
	return false, skip
}

func hasAudio(sig *audio.Signal) bool {
	return sig != nil && sig.SampleRate > 0 && len(sig.Samples) > 0
}
