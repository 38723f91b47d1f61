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

package calibrate

import (
	"math"
	"testing"

	"github.com/goccmack/beatgrid/internal/audio"
	"github.com/goccmack/beatgrid/internal/serato"
)

func beats(start, step float64, n int) []float64 {
	b := make([]float64, n)
	for i := range b {
		b[i] = start + float64(i)*step
	}
	return b
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-5 }

func TestCalibrateAcceptsPlausibleOffset(t *testing.T) {
	in := Input{
		Beats:    beats(0, 0.5, 20),
		Existing: []serato.Marker{{Position: 0.045, BPM: 120}},
	}
	c := Calibrate(in, DefaultParams())
	if c.Source != Empirical {
		t.Fatalf("Source = %q, want %q", c.Source, Empirical)
	}
	if !near(c.Offset, 0.045) {
		t.Errorf("Offset = %v, want 0.045", c.Offset)
	}
	if c.Matches != 20 {
		t.Errorf("Matches = %d, want 20", c.Matches)
	}
}

func TestCalibrateRejectsImplausibleOffset(t *testing.T) {
	in := Input{
		Beats:    beats(0, 0.5, 20),
		Existing: []serato.Marker{{Position: 0.065, BPM: 120}},
	}
	p := DefaultParams()
	offset, n, ok := Measure(in, p)
	if !ok || n < p.MinMatches || !near(offset, 0.065) {
		t.Fatalf("Measure = %v, %d, %v; want 0.065 with >= 10 matches", offset, n, ok)
	}
	c := Calibrate(in, p)
	if c.Source != Computed {
		t.Fatalf("Source = %q, want %q", c.Source, Computed)
	}
	if !near(c.Offset, p.LeadDefault) {
		t.Errorf("Offset = %v, want %v", c.Offset, p.LeadDefault)
	}
}

func TestCalibrateTooFewMatches(t *testing.T) {
	in := Input{
		Beats: beats(0, 0.5, 5),
		Existing: []serato.Marker{
			{Position: 0.02, Beats: 4},
			{Position: 2.02, BPM: 120},
		},
	}
	if c := Calibrate(in, DefaultParams()); c.Source != Computed {
		t.Errorf("Source = %q, want %q", c.Source, Computed)
	}
}

func TestCalibrateCorruptGrid(t *testing.T) {
	p := DefaultParams()
	for _, m := range [][]serato.Marker{
		{{Position: 1, BPM: 1e30}},
		{{Position: 0, Beats: 1 << 30}, {Position: 1, BPM: 120}},
		{{Position: 0, Beats: math.MaxUint32}, {Position: 5000, BPM: 120}},
	} {
		in := Input{Beats: beats(0, 0.5, 20), Existing: m}
		c := Calibrate(in, p)
		if c.Offset < p.MinOffset || c.Offset > p.MaxOffset {
			t.Errorf("%+v: offset %v outside [%v, %v]", m, c.Offset, p.MinOffset, p.MaxOffset)
		}
	}
}

func TestMeasureGridPointFallback(t *testing.T) {
	in := Input{
		Beats:    beats(0.48, 0.5, 20),
		Existing: []serato.Marker{{Position: 100, BPM: 120}},
	}
	in.Signal = &audio.Signal{Samples: make([]float64, 1000*200), SampleRate: 1000}
	offset, n, ok := Measure(in, DefaultParams())
	if !ok {
		t.Fatalf("Measure rejected grid point matches (%d)", n)
	}
	if n != 20 || !near(offset, 0.02) {
		t.Errorf("Measure = %v, %d; want 0.02, 20", offset, n)
	}
}

func TestCompute(t *testing.T) {
	p := DefaultParams()
	if got := Compute(Input{Beats: beats(0, 0.5, 4)}, p); !near(got, 0.005) {
		t.Errorf("no signal, non-MP3: %v, want 0.005", got)
	}

	got := Compute(Input{EncoderDelay: 576}, p)
	if want := float64(576+529)/44100 + 0.005; !near(got, want) {
		t.Errorf("MP3 default delay: %v, want %v", got, want)
	}
}

func TestOnsetLead(t *testing.T) {
	const rate = 1000
	sig := &audio.Signal{Samples: make([]float64, 10*rate), SampleRate: rate}
	var bs []float64
	for i := 1; i < 9; i++ {
		b := float64(i)
		bs = append(bs, b)
		sig.Samples[i*rate+8] = 1 // peak 8 ms after the beat
	}
	p := DefaultParams()
	if got := OnsetLead(bs, sig, p); !near(got, 0.008) {
		t.Errorf("OnsetLead = %v, want 0.008", got)
	}

	silent := &audio.Signal{Samples: make([]float64, 10*rate), SampleRate: rate}
	if got := OnsetLead(bs, silent, p); !near(got, p.LeadMin) {
		t.Errorf("silent OnsetLead = %v, want clamp to %v", got, p.LeadMin)
	}
}
