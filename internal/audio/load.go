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

package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-audio/wav"
)

// ErrInvalidWav is returned for input that is not a PCM WAV file.
var ErrInvalidWav = errors.New("not a valid WAV file")

/*
Load decodes the audio file at path to a mono Signal. WAV files are read
directly; every other container is decoded by ffmpeg at sampleRate.
*/
func Load(ctx context.Context, path, ffmpeg string, sampleRate int) (*Signal, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		sig, err := ReadWav(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return sig, nil
	}
	return DecodeFile(ctx, ffmpeg, path, sampleRate)
}

// ReadWav reads a PCM WAV stream and downmixes it to mono.
func ReadWav(r io.ReadSeeker) (*Signal, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWav
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	channels := int(d.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(d.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << uint(bitDepth-1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range samples {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) / scale
	}
	return &Signal{Samples: samples, SampleRate: int(d.SampleRate)}, nil
}

// DecodeFile runs ffmpeg to decode path to mono 32-bit float PCM at sampleRate.
func DecodeFile(ctx context.Context, ffmpeg, path string, sampleRate int) (*Signal, error) {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	slog.Debug("decoded audio", "path", path, "pcm", humanize.Bytes(uint64(len(out))))
	return &Signal{Samples: floatsLE(out), SampleRate: sampleRate}, nil
}

func floatsLE(b []byte) []float64 {
	x := make([]float64, len(b)/4)
	for i := range x {
		x[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return x
}
