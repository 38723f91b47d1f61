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

// Package detect produces the raw candidate beats the grid is built from.
package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/goccmack/beatgrid/internal/audio"
)

// Detector returns candidate beat times in seconds.
type Detector interface {
	Detect(sig *audio.Signal) ([]float64, error)
}

// File reads beats produced by an external beat tracker. The file holds a
// JSON array of seconds or an object with a "beats" array.
type File struct {
	Path string
}

// Detect ignores sig and returns the beats in the file, sorted.
func (f File) Detect(*audio.Signal) ([]float64, error) {
	buf, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read beats: %w", err)
	}
	beats, err := parseBeats(buf)
	if err != nil {
		return nil, fmt.Errorf("parse beats %s: %w", f.Path, err)
	}
	sort.Float64s(beats)
	return beats, nil
}

func parseBeats(buf []byte) ([]float64, error) {
	var beats []float64
	if err := json.Unmarshal(buf, &beats); err == nil {
		return beats, nil
	}
	var rec struct {
		Beats []float64 `json:"beats"`
	}
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, err
	}
	return rec.Beats, nil
}
