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
	"path/filepath"
	"strings"

	"github.com/goccmack/godsp"

	"github.com/goccmack/beatgrid/internal/detect"
	"github.com/goccmack/beatgrid/internal/grid"
)

// beatWidth is the number of samples of one beat pulse in the beat plot
const beatWidth = 100

/*
WritePlots writes Matlab data files for a into dir:

	<name>.envelope   the DWT energy envelope
	<name>.beatsd     the final beats as impulses at the envelope rate
	<name>.beat       the final beats as pulses at the sample rate

It needs the decoded signal of a.
*/
func WritePlots(dir string, a *grid.Analysis) error {
	if a.Signal == nil || len(a.Signal.Samples) == 0 {
		return fmt.Errorf("plot %s: no audio", a.Path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("plot dir: %w", err)
	}
	base := filepath.Join(dir, plotName(a.Path))

	env := detect.Envelope(a.Signal)
	godsp.WriteDataFile(env, base+".envelope")
	godsp.WriteDataFile(Impulses(a.Beats, a.Signal.SampleRate/detect.Scale, len(env), 1, 1), base+".beatsd")
	godsp.WriteDataFile(Impulses(a.Beats, a.Signal.SampleRate, len(a.Signal.Samples), beatWidth, godsp.Max(a.Signal.Samples)), base+".beat")
	return nil
}

/*
Impulses returns a train of length n at rate fs with a pulse of width samples
and height value at each beat.
*/
func Impulses(beats []float64, fs, n, width int, value float64) []float64 {
	bt := make([]float64, n)
	for _, b := range beats {
		pk := int(b * float64(fs))
		if pk < 0 {
			continue
		}
		for i := 0; i < width && pk+i < n; i++ {
			bt[pk+i] = value
		}
	}
	return bt
}

func plotName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
