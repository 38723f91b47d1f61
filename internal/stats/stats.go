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
Package stats holds the small robust-statistics primitives used by the beat
grid heuristics: median, percentile, interquartile range and a closed form
degree-1 least squares fit.
*/
package stats

import (
	"math"
	"sort"
)

// Median returns the median of x. The median of an empty slice is 0.
// x is not modified.
func Median(x []float64) float64 {
	return Percentile(x, 50)
}

/*
Percentile returns the p-th percentile (0 <= p <= 100) of x using linear
interpolation between the closest ranks. The percentile of an empty slice is 0.
x is not modified.
*/
func Percentile(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	s := sorted(x)
	if p <= 0 {
		return s[0]
	}
	if p >= 100 {
		return s[n-1]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}

// IQR returns the interquartile range of x.
func IQR(x []float64) float64 {
	return Percentile(x, 75) - Percentile(x, 25)
}

// Diff returns the first differences of x: x[i+1]-x[i].
func Diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	d := make([]float64, len(x)-1)
	for i := range d {
		d[i] = x[i+1] - x[i]
	}
	return d
}

/*
LinearFit returns the least squares line y = slope*x + intercept through the
points (x[i], y[i]). ok is false when fewer than two points are given or all x
are equal.
*/
func LinearFit(x, y []float64) (slope, intercept float64, ok bool) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, 0, false
	}
	var sx, sy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)
	var sxx, sxy float64
	for i := range x {
		dx := x[i] - mx
		sxx += dx * dx
		sxy += dx * (y[i] - my)
	}
	if sxx == 0 {
		return 0, 0, false
	}
	slope = sxy / sxx
	intercept = my - slope*mx
	return slope, intercept, true
}

func sorted(x []float64) []float64 {
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	return s
}
