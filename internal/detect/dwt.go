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

package detect

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/goccmack/godsp"
	"github.com/goccmack/godsp/dwt"
	"github.com/goccmack/godsp/peaks"

	"github.com/goccmack/beatgrid/internal/audio"
)

const (
	// DWTLevel is the number of scales over which the DWT will be computed
	DWTLevel = 4
	// Scale is the number of times the energy envelope divides the length
	// of the signal
	Scale = 1 << DWTLevel

	// DefaultPeakSepMs is the default minimum peak separation distance
	DefaultPeakSepMs = 250
)

/*
DWT detects beats as the peaks of the wavelet energy envelope: the sum over
all Daubechies-4 scales of the absolute, downsampled coefficients, normalised
by its average. Adjacent peaks are at least PeakSepMs apart.
*/
type DWT struct {
	PeakSepMs int
}

// Detect returns the envelope peaks of sig in seconds.
func (d DWT) Detect(sig *audio.Signal) ([]float64, error) {
	if sig == nil || len(sig.Samples) == 0 {
		return nil, nil
	}
	sep, err := d.sepScale(sig.SampleRate)
	if err != nil {
		return nil, err
	}
	pks := Peaks(Envelope(sig), sep)
	beats := make([]float64, 0, len(pks))
	for _, pk := range pks {
		if pk*Scale < len(sig.Samples) {
			beats = append(beats, float64(pk*Scale)/float64(sig.SampleRate))
		}
	}
	slog.Debug("dwt beats", "peaks", len(beats), "sep_ms", d.PeakSepMs)
	return beats, nil
}

// sepScale returns the peak separation in samples at the highest DWT scale.
func (d DWT) sepScale(fs int) (int, error) {
	sepMs := d.PeakSepMs
	if sepMs == 0 {
		sepMs = DefaultPeakSepMs
	}
	sepFss := sepMs * fs / (Scale * 1000)
	if sepFss <= 0 {
		return 0, fmt.Errorf("sep is too small. Minimum for this file is %d ms", Scale*1000/fs+1)
	}
	return sepFss, nil
}

/*
Envelope returns the wavelet energy envelope of sig at 1/Scale of its sample
rate. The signal is zero padded to a power of two for the transform.
*/
func Envelope(sig *audio.Signal) []float64 {
	db4 := dwt.Daubechies4(pad(sig.Samples), DWTLevel)
	coefs := db4.GetCoefficients()
	absX := godsp.AbsAll(coefs)
	dsX := godsp.DownSampleAll(absX)
	sumX := godsp.SumVectors(dsX)
	if avg := godsp.Average(sumX); avg > 0 {
		sumX = godsp.DivS(sumX, avg)
	}
	return sumX
}

// Peaks returns the sorted envelope peak indices at least sep apart.
func Peaks(env []float64, sep int) []int {
	pks := peaks.Get(env, sep)
	sort.Ints(pks)
	return pks
}

func pad(x []float64) []float64 {
	n := 1
	for n < len(x) {
		n <<= 1
	}
	if n < 2*Scale {
		n = 2 * Scale
	}
	y := make([]float64, n)
	copy(y, x)
	return y
}
