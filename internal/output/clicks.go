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

package output

import (
	"fmt"
	"os"

	"github.com/goccmack/beatgrid/internal/audio"
	"github.com/goccmack/beatgrid/internal/grid"
)

const (
	clickMs    = 10
	clickLevel = 0.8
	musicLevel = 0.5
)

/*
Clicks renders the final beats of a as a click track. When the decoded audio
of a is available it is mixed in below the clicks.
*/
func Clicks(a *grid.Analysis) *audio.Signal {
	fs := a.SampleRate
	if a.Signal != nil && a.Signal.SampleRate > 0 {
		fs = a.Signal.SampleRate
	}
	if fs <= 0 {
		fs = audio.DefaultSampleRate
	}
	duration := a.Duration
	if n := len(a.Beats); n > 0 && a.Beats[n-1]+1 > duration {
		duration = a.Beats[n-1] + 1
	}
	n := int(duration * float64(fs))

	out := Impulses(a.Beats, fs, n, fs*clickMs/1000, clickLevel)
	if a.Signal != nil && a.Signal.SampleRate == fs {
		for i, x := range a.Signal.Samples {
			if i >= n {
				break
			}
			out[i] += musicLevel * x
		}
	}
	return &audio.Signal{Samples: out, SampleRate: fs}
}

// WriteClicks writes the click track of a to the WAV file fname.
func WriteClicks(fname string, a *grid.Analysis) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("click track: %w", err)
	}
	if err := audio.WriteWav(f, Clicks(a)); err != nil {
		f.Close()
		return fmt.Errorf("click track %s: %w", fname, err)
	}
	return f.Close()
}
