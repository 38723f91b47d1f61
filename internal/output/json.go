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

// Package output writes analysis results and plot data files.
package output

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/goccmack/goutil/ioutil"

	"github.com/goccmack/beatgrid/internal/grid"
)

// Version of the output records
const Version = 1

// Output formats
const (
	JSON  = "json"
	Proto = "pb"
)

type OutRecord struct {
	Version      int
	FileName     string  // Input file
	SampleRate   int     // Hz
	Duration     float64 // seconds
	BPM          float64 // tempo of the first segment
	Offset       float64 // calibration offset in seconds, already applied to Beats
	OffsetSource string  // empirical or computed
	Matches      int     // beats matched against an existing grid
	EncoderDelay int     // samples, 0 for non-MP3 input
	DriftMs      float64 // drift tolerance of the segments
	Snapped      bool    // beats were regenerated as a constant grid
	Segments     []OutSegment
	Beats        []float64 // seconds, rounded to 0.1 ms
	Grid         []byte    // encoded Serato markers
}

type OutSegment struct {
	StartBeat int
	EndBeat   int
	Start     float64 // seconds
	BPM       float64
	Beats     int
}

// Record returns the JSON record of a.
func Record(a *grid.Analysis) *OutRecord {
	or := &OutRecord{
		Version:      Version,
		FileName:     a.Path,
		SampleRate:   a.SampleRate,
		Duration:     a.Duration,
		BPM:          a.BPM(),
		Offset:       a.Calibration.Offset,
		OffsetSource: a.Calibration.Source,
		Matches:      a.Calibration.Matches,
		EncoderDelay: a.EncoderDelay,
		DriftMs:      a.Tolerance * 1000,
		Snapped:      a.Snapped,
		Segments:     make([]OutSegment, len(a.Segments)),
		Beats:        make([]float64, len(a.Beats)),
		Grid:         a.Grid,
	}
	for i, s := range a.Segments {
		or.Segments[i] = OutSegment{
			StartBeat: s.StartBeat,
			EndBeat:   s.EndBeat,
			Start:     s.Start,
			BPM:       s.BPM,
			Beats:     s.Beats,
		}
	}
	for i, b := range a.Beats {
		or.Beats[i] = math.Round(b*1e4) / 1e4
	}
	return or
}

// Marshal encodes a in format.
func Marshal(a *grid.Analysis, format string) ([]byte, error) {
	switch format {
	case JSON, "":
		return json.Marshal(Record(a))
	case Proto:
		return MarshalProto(a)
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// Write writes a in format to fname. fname "-" is stdout.
func Write(fname, format string, a *grid.Analysis) error {
	buf, err := Marshal(a, format)
	if err != nil {
		return err
	}
	if fname == "-" {
		_, err = os.Stdout.Write(append(buf, '\n'))
		return err
	}
	if err := ioutil.WriteFile(fname, buf); err != nil {
		return fmt.Errorf("write %s: %w", fname, err)
	}
	return nil
}

// WriteGrid writes the encoded Serato markers of a to fname.
func WriteGrid(fname string, a *grid.Analysis) error {
	if err := ioutil.WriteFile(fname, a.Grid); err != nil {
		return fmt.Errorf("write %s: %w", fname, err)
	}
	return nil
}
