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
Package grid runs the beat grid pipeline over one audio file:

	detect -> clean -> snap -> calibrate -> segment -> encode

The cleaned beats are kept before snapping because calibration matches them
against a grid already stored in the file.
*/
package grid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccmack/beatgrid/internal/audio"
	"github.com/goccmack/beatgrid/internal/calibrate"
	"github.com/goccmack/beatgrid/internal/cleaner"
	"github.com/goccmack/beatgrid/internal/config"
	"github.com/goccmack/beatgrid/internal/detect"
	"github.com/goccmack/beatgrid/internal/mp3"
	"github.com/goccmack/beatgrid/internal/segment"
	"github.com/goccmack/beatgrid/internal/serato"
	"github.com/goccmack/beatgrid/internal/snap"
)

// Analysis is the result of one file.
type Analysis struct {
	Path         string
	SampleRate   int
	Duration     float64 // seconds
	Beats        []float64
	Segments     []segment.Segment
	Markers      []serato.Marker
	Grid         []byte // encoded markers
	Calibration  calibrate.Calibration
	EncoderDelay int
	Tolerance    float64 // drift tolerance the segments were built with
	Snapped      bool
	Existing     []serato.Marker // grid found in the file, if any

	// Signal is the decoded audio. It is nil after AnalyzeAll hands the
	// analysis to its sink.
	Signal *audio.Signal
}

// BPM returns the tempo of the first segment, or 0 without segments.
func (a *Analysis) BPM() float64 {
	if len(a.Segments) == 0 {
		return 0
	}
	return a.Segments[0].BPM
}

// Analyze loads the audio at path and builds its beat grid.
func Analyze(ctx context.Context, path string, cfg config.Config, det detect.Detector) (*Analysis, error) {
	start := time.Now()
	sig, err := audio.Load(ctx, path, cfg.FFmpeg, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	raw, err := det.Detect(sig)
	if err != nil {
		return nil, fmt.Errorf("detect beats %s: %w", path, err)
	}
	existing, ok := serato.ReadFile(path)
	if ok {
		slog.Debug("existing grid", "path", path, "markers", len(existing))
	}
	a := Build(raw, sig, existing, mp3.EncoderDelay(path), cfg)
	a.Path = path
	slog.Info("analysed", "path", path, "beats", len(a.Beats), "segments", len(a.Segments),
		"bpm", a.BPM(), "offset_ms", a.Calibration.Offset*1000, "elapsed", time.Since(start))
	return a, nil
}

/*
Build runs the pipeline over raw detector output. sig may be nil, existing is
the grid already stored in the file and encoderDelay is 0 for non-MP3 input.
*/
func Build(raw []float64, sig *audio.Signal, existing []serato.Marker, encoderDelay int, cfg config.Config) *Analysis {
	if len(raw) == 0 {
		raw = []float64{0}
	}
	cleaned := cleaner.Clean(raw, sig, cfg.Cleaner)
	if len(cleaned) == 0 {
		cleaned = []float64{0}
	}
	snapped, ok := snap.Snap(cleaned, cfg.Snap)

	cal := calibrate.Calibrate(calibrate.Input{
		Beats:        cleaned,
		Existing:     existing,
		Signal:       sig,
		EncoderDelay: encoderDelay,
	}, cfg.Calibrate)
	beats := make([]float64, len(snapped))
	for i, b := range snapped {
		beats[i] = b + cal.Offset
	}

	res := segment.Build(beats, cfg.Segment)
	markers := segment.Markers(res.Segments)
	a := &Analysis{
		Duration:     sig.Duration(),
		Beats:        beats,
		Segments:     res.Segments,
		Markers:      markers,
		Grid:         serato.Encode(markers),
		Calibration:  cal,
		EncoderDelay: encoderDelay,
		Tolerance:    res.Tolerance,
		Snapped:      ok,
		Existing:     existing,
		Signal:       sig,
	}
	if sig != nil {
		a.SampleRate = sig.SampleRate
	}
	return a
}
