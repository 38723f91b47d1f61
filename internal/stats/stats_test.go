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

package stats

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{3}, 3},
		{[]float64{3, 1}, 2},
		{[]float64{5, 1, 3}, 3},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		if got := Median(tt.in); got != tt.want {
			t.Errorf("Median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMedianDoesNotModifyInput(t *testing.T) {
	x := []float64{3, 1, 2}
	Median(x)
	if x[0] != 3 || x[1] != 1 || x[2] != 2 {
		t.Errorf("input modified: %v", x)
	}
}

func TestPercentile(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p, want float64
	}{
		{0, 1},
		{25, 2},
		{50, 3},
		{75, 4},
		{100, 5},
		{10, 1.4},
	}
	for _, tt := range tests {
		if got := Percentile(x, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := IQR(x); got != 2 {
		t.Errorf("IQR = %v, want 2", got)
	}
}

func TestDiff(t *testing.T) {
	if d := Diff([]float64{1}); d != nil {
		t.Errorf("Diff of one element = %v, want nil", d)
	}
	d := Diff([]float64{1, 3, 6})
	if len(d) != 2 || d[0] != 2 || d[1] != 3 {
		t.Errorf("Diff = %v, want [2 3]", d)
	}
}

func TestLinearFit(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7}
	slope, intercept, ok := LinearFit(x, y)
	if !ok {
		t.Fatal("LinearFit returned !ok")
	}
	if math.Abs(slope-2) > 1e-12 || math.Abs(intercept-1) > 1e-12 {
		t.Errorf("LinearFit = %v, %v, want 2, 1", slope, intercept)
	}

	if _, _, ok := LinearFit([]float64{1, 1}, []float64{1, 2}); ok {
		t.Error("LinearFit with constant x should not be ok")
	}
	if _, _, ok := LinearFit([]float64{1}, []float64{1}); ok {
		t.Error("LinearFit with one point should not be ok")
	}
}
