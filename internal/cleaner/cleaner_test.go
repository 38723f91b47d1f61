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

package cleaner

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/goccmack/beatgrid/internal/audio"
)

const rate = 1000

// levels builds a signal of the given duration whose amplitude is quiet
// before split and loud from split on.
func levels(duration, split, quiet, loud float64) *audio.Signal {
	s := &audio.Signal{Samples: make([]float64, int(duration*rate)), SampleRate: rate}
	for i := range s.Samples {
		if float64(i)/rate < split {
			s.Samples[i] = quiet
		} else {
			s.Samples[i] = loud
		}
	}
	return s
}

func grid(start, step float64, n int) []float64 {
	b := make([]float64, n)
	for i := range b {
		b[i] = start + float64(i)*step
	}
	return b
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestRemoveFalseDoubleHit(t *testing.T) {
	got := RemoveFalse([]float64{0, 1, 2, 3, 3.02, 4, 5}, DefaultParams())
	want := []float64{0, 1, 2, 3, 4, 5}
	if !equal(got, want) {
		t.Errorf("RemoveFalse = %v, want %v", got, want)
	}
}

func TestRemoveFalseIdempotent(t *testing.T) {
	clean := grid(0, 0.5, 41)
	noisy := append([]float64(nil), clean[:7]...)
	noisy = append(noisy, 3.05)
	noisy = append(noisy, clean[7:15]...)
	noisy = append(noisy, 7.27)
	noisy = append(noisy, clean[15:]...)

	p := DefaultParams()
	once := RemoveFalse(noisy, p)
	if !equal(once, clean) {
		t.Errorf("RemoveFalse = %v, want %v", once, clean)
	}
	if twice := RemoveFalse(once, p); !equal(twice, once) {
		t.Errorf("second pass changed the sequence: %v", twice)
	}
	if len(noisy) != 43 {
		t.Errorf("input modified: len %d", len(noisy))
	}
}

// TestRemoveFalseIdempotentNoisy checks idempotency on jittered sequences
// with spurious hits.
func TestRemoveFalseIdempotentNoisy(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := DefaultParams()
	for n := 0; n < 2000; n++ {
		var in []float64
		for i := 0; i < 40; i++ {
			b := float64(i)*0.5 + rng.NormFloat64()*0.020
			in = append(in, b)
			if rng.Float64() < 0.15 {
				in = append(in, b+0.05+rng.Float64()*0.4)
			}
		}
		sort.Float64s(in)
		in = Dedupe(in, p.Epsilon)

		once := RemoveFalse(in, p)
		if twice := RemoveFalse(once, p); !equal(twice, once) {
			t.Fatalf("sequence %d: second pass changed %v to %v", n, once, twice)
		}
	}
}

func TestRemoveFalseDeferredBeat(t *testing.T) {
	in := []float64{0.5, 1, 1.5, 1.935, 2.107, 2.434, 2.604, 2.931, 3.5, 4, 4.5}
	p := DefaultParams()
	once := RemoveFalse(in, p)
	if twice := RemoveFalse(once, p); !equal(twice, once) {
		t.Errorf("second pass changed %v to %v", once, twice)
	}
}

func TestRemoveFalseShortInput(t *testing.T) {
	for _, in := range [][]float64{nil, {1}, {1, 1.01}} {
		if got := RemoveFalse(in, DefaultParams()); len(got) != len(in) {
			t.Errorf("RemoveFalse(%v) = %v", in, got)
		}
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]float64{0, 0.0001, 1, 0.9, 2, math.NaN(), 3}, 0.0005)
	want := []float64{0, 1, 2, 3}
	if !equal(got, want) {
		t.Errorf("Dedupe = %v, want %v", got, want)
	}
}

func TestTrimWeakLeading(t *testing.T) {
	sig := levels(12, 2, 0.01, 0.5)
	beats := grid(0.5, 0.5, 20)
	got := TrimWeakLeading(beats, sig, DefaultParams())
	if len(got) == 0 || got[0] != 2.0 {
		t.Fatalf("first beat = %v, want 2.0", got)
	}
	if len(got) != 17 {
		t.Errorf("len = %d, want 17", len(got))
	}
}

func TestTrimWeakLeadingWithoutAudio(t *testing.T) {
	beats := grid(0.5, 0.5, 8)
	if got := TrimWeakLeading(beats, nil, DefaultParams()); !equal(got, beats) {
		t.Errorf("TrimWeakLeading without audio = %v", got)
	}
}

func TestExtrapolateLeading(t *testing.T) {
	beats := grid(2, 0.5, 16)

	got := ExtrapolateLeading(beats, levels(12, 0, 0, 0.5), DefaultParams())
	if want := append(grid(0, 0.5, 4), beats...); !equal(got, want) {
		t.Errorf("loud intro: ExtrapolateLeading = %v, want %v", got, want)
	}

	got = ExtrapolateLeading(beats, levels(12, 1.2, 0.01, 0.5), DefaultParams())
	if want := append([]float64{1.5}, beats...); !equal(got, want) {
		t.Errorf("quiet intro: ExtrapolateLeading = %v, want %v", got, want)
	}

	got = ExtrapolateLeading(beats, levels(12, 12, 0, 0), DefaultParams())
	if !equal(got, beats) {
		t.Errorf("silent: ExtrapolateLeading = %v, want input", got)
	}
}

func TestCleanNeverReorders(t *testing.T) {
	sig := levels(30, 0, 0, 0.5)
	in := []float64{1, 1.5, 1.52, 2, 2.5, 2.5, 3, 2.9, 3.5, 4, 4.5, 5, 5.5, 6, 6.5, 7}
	got := Clean(in, sig, DefaultParams())
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("not strictly increasing at %d: %v", i, got)
		}
	}
	if got[0] != 0 {
		t.Errorf("first beat = %v, want extrapolated 0", got[0])
	}
}
