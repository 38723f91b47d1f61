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
Package serato encodes and decodes the Serato BeatGrid marker format and finds
an existing grid inside an audio file's metadata.

The marker blob is big-endian:

	0x01 0x00               header
	uint32                  marker count
	count * {
	    float32             position in seconds
	    uint32 | float32    beats to the next marker, or BPM for the last marker
	}

Serato places a beat on every marker and interpolates count-1 evenly spaced
beats between a marker and the next one. The last marker extends at 60/BPM.
*/
package serato

import (
	"encoding/binary"
	"math"
)

// MaxMarkers is the largest number of markers the format supports.
const MaxMarkers = 32

const (
	headerSize = 6
	markerSize = 8
)

/*
Marker is one persisted grid anchor. Beats is meaningful for every marker but
the last one; BPM only for the last one.
*/
type Marker struct {
	Position float32
	Beats    uint32
	BPM      float32
}

// Encode serialises markers. The last marker is written with its BPM.
func Encode(markers []Marker) []byte {
	b := make([]byte, headerSize+markerSize*len(markers))
	b[0], b[1] = 0x01, 0x00
	binary.BigEndian.PutUint32(b[2:], uint32(len(markers)))
	for i, m := range markers {
		p := b[headerSize+i*markerSize:]
		binary.BigEndian.PutUint32(p, math.Float32bits(m.Position))
		if i == len(markers)-1 {
			binary.BigEndian.PutUint32(p[4:], math.Float32bits(m.BPM))
		} else {
			binary.BigEndian.PutUint32(p[4:], m.Beats)
		}
	}
	return b
}

/*
Decode parses a marker blob. ok is false for a malformed blob, a zero marker
count, a length that does not match the count, or a position or BPM that is
not finite. Serato's one byte footer after the markers is allowed.
*/
func Decode(b []byte) (markers []Marker, ok bool) {
	if len(b) < headerSize || b[0] != 0x01 || b[1] != 0x00 {
		return nil, false
	}
	n := uint64(binary.BigEndian.Uint32(b[2:]))
	body := uint64(len(b) - headerSize)
	if n == 0 || body < n*markerSize || body > n*markerSize+1 {
		return nil, false
	}
	markers = make([]Marker, n)
	for i := range markers {
		p := b[headerSize+i*markerSize:]
		markers[i].Position = math.Float32frombits(binary.BigEndian.Uint32(p))
		if !finite(markers[i].Position) {
			return nil, false
		}
		v := binary.BigEndian.Uint32(p[4:])
		if i == len(markers)-1 {
			markers[i].BPM = math.Float32frombits(v)
			if !finite(markers[i].BPM) {
				return nil, false
			}
		} else {
			markers[i].Beats = v
		}
	}
	return markers, true
}

func finite(f float32) bool {
	x := float64(f)
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
