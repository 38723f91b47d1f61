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

package config

import (
	"math"
	"os"
	"runtime"
	"testing"
)

var envVars = []string{
	"BEATGRID_SAMPLE_RATE", "BEATGRID_PEAK_SEP_MS", "BEATGRID_WORKERS",
	"BEATGRID_DB", "BEATGRID_FFMPEG", "BEATGRID_DRIFT_MS",
	"BEATGRID_MAX_MARKERS", "BEATGRID_OFFSET_MIN_MS", "BEATGRID_OFFSET_MAX_MS",
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

func TestLoadDefaults(t *testing.T) {
	for _, k := range envVars {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.PeakSepMs != 250 {
		t.Errorf("PeakSepMs = %d, want 250", cfg.PeakSepMs)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want %d", cfg.Workers, runtime.NumCPU())
	}
	if cfg.DB != "" {
		t.Errorf("DB = %q, want empty default", cfg.DB)
	}
	if cfg.FFmpeg != "ffmpeg" {
		t.Errorf("FFmpeg = %q, want 'ffmpeg'", cfg.FFmpeg)
	}
	if !near(cfg.Segment.Drift, 0.020) {
		t.Errorf("Segment.Drift = %f, want 0.020", cfg.Segment.Drift)
	}
	if cfg.Segment.MaxMarkers != 32 {
		t.Errorf("Segment.MaxMarkers = %d, want 32", cfg.Segment.MaxMarkers)
	}
	if !near(cfg.Calibrate.MinOffset, -0.010) || !near(cfg.Calibrate.MaxOffset, 0.060) {
		t.Errorf("Calibrate offsets = [%f, %f], want [-0.010, 0.060]", cfg.Calibrate.MinOffset, cfg.Calibrate.MaxOffset)
	}
	if cfg.Cleaner.Tolerance != 0.20 {
		t.Errorf("Cleaner.Tolerance = %f, want 0.20", cfg.Cleaner.Tolerance)
	}
	if cfg.Snap.MinBeats != 8 {
		t.Errorf("Snap.MinBeats = %d, want 8", cfg.Snap.MinBeats)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BEATGRID_SAMPLE_RATE", "48000")
	t.Setenv("BEATGRID_PEAK_SEP_MS", "300")
	t.Setenv("BEATGRID_WORKERS", "3")
	t.Setenv("BEATGRID_DB", "/tmp/beatgrid.db")
	t.Setenv("BEATGRID_FFMPEG", "/usr/local/bin/ffmpeg")
	t.Setenv("BEATGRID_DRIFT_MS", "25")
	t.Setenv("BEATGRID_MAX_MARKERS", "16")
	t.Setenv("BEATGRID_OFFSET_MIN_MS", "-5")
	t.Setenv("BEATGRID_OFFSET_MAX_MS", "50")

	cfg := Load()

	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.PeakSepMs != 300 {
		t.Errorf("PeakSepMs = %d, want 300", cfg.PeakSepMs)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.DB != "/tmp/beatgrid.db" {
		t.Errorf("DB = %q, want env override", cfg.DB)
	}
	if cfg.FFmpeg != "/usr/local/bin/ffmpeg" {
		t.Errorf("FFmpeg = %q, want env override", cfg.FFmpeg)
	}
	if !near(cfg.Segment.Drift, 0.025) {
		t.Errorf("Segment.Drift = %f, want 0.025", cfg.Segment.Drift)
	}
	if cfg.Segment.MaxMarkers != 16 {
		t.Errorf("Segment.MaxMarkers = %d, want 16", cfg.Segment.MaxMarkers)
	}
	if !near(cfg.Calibrate.MinOffset, -0.005) || !near(cfg.Calibrate.MaxOffset, 0.050) {
		t.Errorf("Calibrate offsets = [%f, %f], want [-0.005, 0.050]", cfg.Calibrate.MinOffset, cfg.Calibrate.MaxOffset)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("BEATGRID_PEAK_SEP_MS", "not-a-number")
	t.Setenv("BEATGRID_DRIFT_MS", "wide")
	cfg := Load()
	if cfg.PeakSepMs != 250 {
		t.Errorf("Invalid int env should fallback to default: got %d, want 250", cfg.PeakSepMs)
	}
	if !near(cfg.Segment.Drift, 0.020) {
		t.Errorf("Invalid float env should fallback to default: got %f, want 0.020", cfg.Segment.Drift)
	}
}

func TestNonPositiveValuesFallBack(t *testing.T) {
	t.Setenv("BEATGRID_SAMPLE_RATE", "0")
	t.Setenv("BEATGRID_WORKERS", "-2")
	t.Setenv("BEATGRID_DRIFT_MS", "-1")
	t.Setenv("BEATGRID_MAX_MARKERS", "0")
	cfg := Load()
	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Workers)
	}
	if !near(cfg.Segment.Drift, 0.020) {
		t.Errorf("Segment.Drift = %f, want 0.020", cfg.Segment.Drift)
	}
	if cfg.Segment.MaxMarkers != 32 {
		t.Errorf("Segment.MaxMarkers = %d, want 32", cfg.Segment.MaxMarkers)
	}
}
