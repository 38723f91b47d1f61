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
	"os"
	"runtime"
	"strconv"

	"github.com/goccmack/beatgrid/internal/audio"
	"github.com/goccmack/beatgrid/internal/calibrate"
	"github.com/goccmack/beatgrid/internal/cleaner"
	"github.com/goccmack/beatgrid/internal/detect"
	"github.com/goccmack/beatgrid/internal/segment"
	"github.com/goccmack/beatgrid/internal/snap"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	SampleRate int    // Hz, decode rate of non-WAV input
	PeakSepMs  int    // minimum distance of DWT beats
	Workers    int    // files analysed concurrently
	DB         string // sqlite history file, empty for none
	FFmpeg     string // decoder binary

	Cleaner   cleaner.Params
	Snap      snap.Params
	Calibrate calibrate.Params
	Segment   segment.Params
}

// Default returns the built in configuration without environment overrides.
func Default() Config {
	return Config{
		SampleRate: audio.DefaultSampleRate,
		PeakSepMs:  detect.DefaultPeakSepMs,
		Workers:    runtime.NumCPU(),
		FFmpeg:     "ffmpeg",
		Cleaner:    cleaner.DefaultParams(),
		Snap:       snap.DefaultParams(),
		Calibrate:  calibrate.DefaultParams(),
		Segment:    segment.DefaultParams(),
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	c := Default()
	c.SampleRate = envInt("BEATGRID_SAMPLE_RATE", c.SampleRate)
	c.PeakSepMs = envInt("BEATGRID_PEAK_SEP_MS", c.PeakSepMs)
	c.Workers = envInt("BEATGRID_WORKERS", c.Workers)
	c.DB = envStr("BEATGRID_DB", c.DB)
	c.FFmpeg = envStr("BEATGRID_FFMPEG", c.FFmpeg)

	c.Segment.Drift = envFloat("BEATGRID_DRIFT_MS", c.Segment.Drift*1000) / 1000
	c.Segment.MaxMarkers = envInt("BEATGRID_MAX_MARKERS", c.Segment.MaxMarkers)
	c.Calibrate.MinOffset = envFloat("BEATGRID_OFFSET_MIN_MS", c.Calibrate.MinOffset*1000) / 1000
	c.Calibrate.MaxOffset = envFloat("BEATGRID_OFFSET_MAX_MS", c.Calibrate.MaxOffset*1000) / 1000

	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Segment.Drift <= 0 {
		c.Segment.Drift = segment.DefaultParams().Drift
	}
	if c.Segment.MaxMarkers <= 0 {
		c.Segment.MaxMarkers = segment.DefaultParams().MaxMarkers
	}
	return c
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
