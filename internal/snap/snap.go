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

// Package snap replaces the beats of constant tempo material with an exact
// arithmetic progression fitted by robust regression.
package snap

import (
	"log/slog"
	"math"

	"github.com/goccmack/beatgrid/internal/stats"
)

// Params holds the snapping thresholds.
type Params struct {
	MinBeats     int     // minimum sequence length
	MaxIQRRatio  float64 // interval IQR / median interval gate
	CountSearch  int     // +/- range of the total beat count search
	InlierWindow float64 // seconds
	MaxIter      int
	MinInliers   int
	AcceptRatio  float64 // required inlier fraction of the numbered beats
}

// DefaultParams returns the default snapping thresholds.
func DefaultParams() Params {
	return Params{
		MinBeats:     8,
		MaxIQRRatio:  0.03,
		CountSearch:  5,
		InlierWindow: 0.030,
		MaxIter:      5,
		MinInliers:   4,
		AcceptRatio:  0.80,
	}
}

/*
Snap returns an evenly spaced grid when beats are near constant tempo, and ok
true. Otherwise it returns a copy of beats and ok false.
*/
func Snap(beats []float64, p Params) (out []float64, ok bool) {
	out = append([]float64(nil), beats...)
	if len(beats) < p.MinBeats || len(beats) < 2 {
		return out, false
	}
	intervals := stats.Diff(beats)
	median := stats.Median(intervals)
	if median <= 0 || stats.IQR(intervals) >= p.MaxIQRRatio*median {
		return out, false
	}

	interval := trialInterval(beats, median, p)
	if interval <= 0 {
		return out, false
	}
	nums, pos := number(beats, interval)

	slope, intercept, inliers := fit(nums, pos, interval, p)
	if slope <= 0 || float64(len(inliers)) < p.AcceptRatio*float64(len(pos)) {
		slog.Debug("grid snap rejected", "inliers", len(inliers), "beats", len(pos), "slope", slope)
		return out, false
	}

	lo, hi := nums[inliers[0]], nums[inliers[0]]
	for _, i := range inliers {
		lo = min(lo, nums[i])
		hi = max(hi, nums[i])
	}
	out = out[:0]
	for k := lo; k <= hi; k++ {
		if t := slope*float64(k) + intercept; t >= 0 {
			out = append(out, t)
		}
	}
	slog.Debug("snapped to constant grid", "bpm", 60/slope, "beats", len(out), "inliers", len(inliers))
	return out, true
}

// trialInterval searches total beat counts around span/median for the
// interval that puts the most beats within InlierWindow of a grid line.
func trialInterval(beats []float64, median float64, p Params) float64 {
	first := beats[0]
	span := beats[len(beats)-1] - first
	est := int(math.Round(span / median))

	best, bestScore := 0.0, -1
	for n := est - p.CountSearch; n <= est+p.CountSearch; n++ {
		if n < 1 {
			continue
		}
		trial := span / float64(n)
		score := 0
		for _, b := range beats {
			d := math.Mod(b-first, trial)
			if math.Min(d, trial-d) < p.InlierWindow {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = trial, score
		}
	}
	return best
}

// number assigns each beat a cumulative beat number from its gap to the
// previous beat and keeps the first beat of each number.
func number(beats []float64, interval float64) (nums []int, pos []float64) {
	nums = []int{0}
	pos = []float64{beats[0]}
	n := 0
	for i := 1; i < len(beats); i++ {
		n += int(math.Round((beats[i] - beats[i-1]) / interval))
		if n == nums[len(nums)-1] {
			continue
		}
		nums = append(nums, n)
		pos = append(pos, beats[i])
	}
	return nums, pos
}

/*
fit seeds pos = slope*num + intercept with the trial interval and the median
residual, then alternates inlier selection and least squares refits until the
inlier set is stable, fewer than MinInliers remain, the slope turns
non-positive, or MaxIter refits have run. It returns the indices of the
inliers of the final line.
*/
func fit(nums []int, pos []float64, interval float64, p Params) (slope, intercept float64, inliers []int) {
	slope = interval
	resid := make([]float64, len(pos))
	for i := range pos {
		resid[i] = pos[i] - slope*float64(nums[i])
	}
	intercept = stats.Median(resid)
	inliers = selectInliers(nums, pos, slope, intercept, p.InlierWindow)

	for iter := 0; iter < p.MaxIter; iter++ {
		if len(inliers) < p.MinInliers {
			break
		}
		x := make([]float64, len(inliers))
		y := make([]float64, len(inliers))
		for j, i := range inliers {
			x[j], y[j] = float64(nums[i]), pos[i]
		}
		s, c, ok := stats.LinearFit(x, y)
		if !ok {
			break
		}
		slope, intercept = s, c
		if slope <= 0 {
			break
		}
		next := selectInliers(nums, pos, slope, intercept, p.InlierWindow)
		same := sameIndices(next, inliers)
		inliers = next
		if same {
			break
		}
	}
	return slope, intercept, inliers
}

func selectInliers(nums []int, pos []float64, slope, intercept, window float64) []int {
	var in []int
	for i := range pos {
		if math.Abs(pos[i]-(slope*float64(nums[i])+intercept)) < window {
			in = append(in, i)
		}
	}
	return in
}

func sameIndices(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
