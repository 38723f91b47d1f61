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
Package calibrate derives the single timing offset that is added to every
detected beat before segmentation.

The offset is measured against a grid already stored in the file when one
exists and gives a plausible answer. Otherwise it is computed from the MP3
codec delay and the lead of each beat onset to its amplitude peak.
*/
package calibrate

import (
	"log/slog"
	"math"
	"sort"

	"github.com/goccmack/beatgrid/internal/audio"
	"github.com/goccmack/beatgrid/internal/serato"
	"github.com/goccmack/beatgrid/internal/stats"
)

// Offset sources
const (
	Empirical = "empirical"
	Computed  = "computed"
)

// Params holds the calibration thresholds. Times are in seconds.
type Params struct {
	MatchWindow    float64 // max |existing - detected| of a direct match
	MaxMatch       int     // number of leading beats matched
	MinMatches     int
	MinGridBeats   int     // reconstructed beats needed for the empirical path
	GridPointRatio float64 // grid point match window as a fraction of the beat interval
	MinOffset      float64
	MaxOffset      float64
	DecoderDelay   int // samples
	PeakWindow     float64
	LeadMin        float64
	LeadMax        float64
	LeadDefault    float64
}

// DefaultParams returns the default calibration thresholds.
func DefaultParams() Params {
	return Params{
		MatchWindow:    0.100,
		MaxMatch:       100,
		MinMatches:     10,
		MinGridBeats:   4,
		GridPointRatio: 0.25,
		MinOffset:      -0.010,
		MaxOffset:      0.060,
		DecoderDelay:   529,
		PeakWindow:     0.025,
		LeadMin:        0.001,
		LeadMax:        0.020,
		LeadDefault:    0.005,
	}
}

// Input is what the calibrator measures against.
type Input struct {
	// Beats are the cleaned beats before grid snapping.
	Beats []float64
	// Existing is the grid already stored in the file, if any.
	Existing []serato.Marker
	// Signal may be nil.
	Signal *audio.Signal
	// EncoderDelay is 0 for non-MP3 input.
	EncoderDelay int
}

// Calibration is the chosen offset and where it came from.
type Calibration struct {
	Offset  float64
	Source  string
	Matches int
}

// Calibrate returns the empirical offset when it is accepted and the computed
// offset otherwise.
func Calibrate(in Input, p Params) Calibration {
	if len(in.Existing) > 0 {
		offset, n, ok := Measure(in, p)
		switch {
		case !ok:
			slog.Info("empirical calibration rejected", "matches", n, "min", p.MinMatches)
		case offset < p.MinOffset || offset > p.MaxOffset:
			slog.Info("empirical calibration rejected", "offset_ms", offset*1000, "matches", n)
		default:
			slog.Debug("empirical calibration", "offset_ms", offset*1000, "matches", n)
			return Calibration{Offset: offset, Source: Empirical, Matches: n}
		}
	}
	offset := Compute(in, p)
	slog.Debug("computed calibration", "offset_ms", offset*1000, "encoder_delay", in.EncoderDelay)
	return Calibration{Offset: offset, Source: Computed}
}

/*
Measure matches the leading beats against the existing grid and returns the
median of the deltas existing - detected. ok is false when the grid is too
short or fewer than MinMatches deltas were collected. The plausibility window
is not applied.
*/
func Measure(in Input, p Params) (offset float64, matches int, ok bool) {
	duration := in.Signal.Duration()
	if duration <= 0 && len(in.Beats) > 0 {
		duration = in.Beats[len(in.Beats)-1] + 1
	}
	existing := serato.Reconstruct(in.Existing, duration, 0)
	sort.Float64s(existing)
	if len(existing) < p.MinGridBeats {
		return 0, 0, false
	}
	beats := in.Beats
	if len(beats) > p.MaxMatch {
		beats = beats[:p.MaxMatch]
	}

	deltas := directMatch(beats, existing, p.MatchWindow)
	if len(deltas) < p.MinMatches && len(in.Existing) == 1 && in.Existing[0].BPM > 0 {
		deltas = gridPointMatch(beats, in.Existing[0], p.GridPointRatio)
	}
	if len(deltas) < p.MinMatches {
		return 0, len(deltas), false
	}
	return stats.Median(deltas), len(deltas), true
}

// directMatch pairs each beat with its nearest existing beat within window.
func directMatch(beats, existing []float64, window float64) []float64 {
	var deltas []float64
	for _, b := range beats {
		i := sort.SearchFloat64s(existing, b)
		best := math.Inf(1)
		for _, j := range []int{i - 1, i} {
			if j >= 0 && j < len(existing) && math.Abs(existing[j]-b) < math.Abs(best) {
				best = existing[j] - b
			}
		}
		if math.Abs(best) <= window {
			deltas = append(deltas, best)
		}
	}
	return deltas
}

// gridPointMatch pairs each beat with the nearest multiple of the marker's
// beat interval from its position.
func gridPointMatch(beats []float64, m serato.Marker, ratio float64) []float64 {
	anchor := float64(m.Position)
	interval := 60 / float64(m.BPM)
	var deltas []float64
	for _, b := range beats {
		g := anchor + math.Round((b-anchor)/interval)*interval
		if d := g - b; math.Abs(d) < ratio*interval {
			deltas = append(deltas, d)
		}
	}
	return deltas
}

/*
Compute returns the MP3 codec delay plus the median onset to peak lead of the
beats. The codec delay is (EncoderDelay + DecoderDelay) / rate for MP3 input
and 0 otherwise.
*/
func Compute(in Input, p Params) float64 {
	var codec float64
	if in.EncoderDelay > 0 {
		rate := audio.DefaultSampleRate
		if in.Signal != nil && in.Signal.SampleRate > 0 {
			rate = in.Signal.SampleRate
		}
		codec = float64(in.EncoderDelay+p.DecoderDelay) / float64(rate)
	}
	return codec + OnsetLead(in.Beats, in.Signal, p)
}

// OnsetLead returns the median offset from each beat to the amplitude peak
// that follows it, clamped to [LeadMin, LeadMax].
func OnsetLead(beats []float64, sig *audio.Signal, p Params) float64 {
	var leads []float64
	for _, b := range beats {
		if d, ok := sig.PeakOffset(b, p.PeakWindow); ok {
			leads = append(leads, d)
		}
	}
	if len(leads) == 0 {
		return p.LeadDefault
	}
	return math.Max(p.LeadMin, math.Min(p.LeadMax, stats.Median(leads)))
}
