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
Package mp3 reads the encoder delay recorded in the LAME extension of an MP3
file's Xing/Info header.

Encoders prepend padding samples to the first frame. Decoders used for beat
detection strip the padding while some DJ software keeps it, so detected beat
positions must be shifted by the delay before they are written into a grid.
*/
package mp3

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDelay is the implicit delay of the LAME encoder. It is returned
	// whenever the header cannot be read.
	DefaultDelay = 576

	// MaxDelay is the exclusive upper bound of a plausible encoder delay.
	MaxDelay = 5000

	headBytes   = 16384
	rereadBytes = 4096
	syncSearch  = 8192
	minBytes    = 128
	versionLen  = 9
	delayOffset = 21
)

// IsMP3 reports whether path names an MP3 file.
func IsMP3(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

/*
EncoderDelay returns the encoder delay in samples of the file at path.
It returns 0 for a non-MP3 path and DefaultDelay when the file cannot be read
or carries no usable LAME header.
*/
func EncoderDelay(path string) int {
	if !IsMP3(path) {
		return 0
	}
	f, err := os.Open(path)
	if err != nil {
		return DefaultDelay
	}
	defer f.Close()
	return ReadEncoderDelay(f)
}

/*
ReadEncoderDelay returns the encoder delay of the MP3 stream in r, or
DefaultDelay when none can be found. It never fails.
*/
func ReadEncoderDelay(r io.ReaderAt) int {
	data := readAt(r, 0, headBytes)
	if len(data) < minBytes {
		return DefaultDelay
	}

	offset := 0
	if string(data[:3]) == "ID3" {
		offset = 10 + synchsafe(data[6:10])
		if offset+rereadBytes > len(data) {
			data = readAt(r, int64(offset), rereadBytes)
			offset = 0
		}
	}

	frame := findFrame(data, offset)
	if frame < 0 || frame+4 > len(data) {
		return DefaultDelay
	}

	header := binary.BigEndian.Uint32(data[frame:])
	xing := frame + 4 + sideInfoSize(header)
	if xing+8 > len(data) {
		return DefaultDelay
	}
	if tag := string(data[xing : xing+4]); tag != "Xing" && tag != "Info" {
		return DefaultDelay
	}

	pos := xing + 8 + optionalFieldsSize(binary.BigEndian.Uint32(data[xing+4:]))
	delayAt := pos + delayOffset
	if delayAt+3 > len(data) {
		return DefaultDelay
	}
	if !printable(data[pos : pos+versionLen]) {
		return DefaultDelay
	}

	delay := int(data[delayAt])<<4 | int(data[delayAt+1])>>4
	if delay > 0 && delay < MaxDelay {
		return delay
	}
	return DefaultDelay
}

// findFrame returns the offset of the first MPEG audio frame sync at or
// after offset whose version and layer are not reserved, or -1.
func findFrame(data []byte, offset int) int {
	end := len(data) - 4
	if offset+syncSearch < end {
		end = offset + syncSearch
	}
	for ; offset < end; offset++ {
		if data[offset] != 0xFF || data[offset+1]&0xE0 != 0xE0 {
			continue
		}
		b := data[offset+1]
		version := (b >> 3) & 3
		layer := (b >> 1) & 3
		if version != 1 && layer != 0 {
			return offset
		}
	}
	return -1
}

// sideInfoSize returns the Layer III side information size for a frame header.
func sideInfoSize(header uint32) int {
	version := (header >> 19) & 3
	mono := (header>>6)&3 == 3
	switch {
	case version == 3 && !mono:
		return 32
	case version == 3:
		return 17
	case !mono:
		return 17
	default:
		return 9
	}
}

// optionalFieldsSize returns the number of bytes taken by the Xing fields
// flagged present: frame count, byte count, TOC and quality indicator.
func optionalFieldsSize(flags uint32) int {
	n := 0
	if flags&0x01 != 0 {
		n += 4
	}
	if flags&0x02 != 0 {
		n += 4
	}
	if flags&0x04 != 0 {
		n += 100
	}
	if flags&0x08 != 0 {
		n += 4
	}
	return n
}

func printable(b []byte) bool {
	for _, c := range b {
		if c != 0 && (c < 32 || c >= 127) {
			return false
		}
	}
	return true
}

func synchsafe(b []byte) int {
	return int(b[0]&0x7F)<<21 | int(b[1]&0x7F)<<14 | int(b[2]&0x7F)<<7 | int(b[3]&0x7F)
}

// readAt reads up to n bytes at off. A short read returns what was read.
func readAt(r io.ReaderAt, off int64, n int) []byte {
	buf := make([]byte, n)
	m, _ := r.ReadAt(buf, off)
	return buf[:m]
}
