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

package mp3

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// lameFrame returns an MPEG-1 Layer III stereo frame carrying a Xing header
// with all optional fields and a LAME extension recording delay.
func lameFrame(delay int) []byte {
	b := make([]byte, 512)
	copy(b, []byte{0xFF, 0xFB, 0x90, 0x00})
	copy(b[36:], "Xing")
	b[43] = 0x0F
	copy(b[156:], "LAME3.100")
	b[177] = byte(delay >> 4)
	b[178] = byte(delay&0x0F) << 4
	return b
}

func id3Header(size int) []byte {
	return []byte{'I', 'D', '3', 4, 0, 0,
		byte(size>>21) & 0x7F, byte(size>>14) & 0x7F, byte(size>>7) & 0x7F, byte(size) & 0x7F}
}

func TestReadEncoderDelay(t *testing.T) {
	if got := ReadEncoderDelay(bytes.NewReader(lameFrame(1234))); got != 1234 {
		t.Errorf("delay = %d, want 1234", got)
	}
}

func TestReadEncoderDelaySkipsID3(t *testing.T) {
	var b bytes.Buffer
	b.Write(id3Header(100))
	b.Write(make([]byte, 100))
	b.Write(lameFrame(1105))
	if got := ReadEncoderDelay(bytes.NewReader(b.Bytes())); got != 1105 {
		t.Errorf("delay = %d, want 1105", got)
	}
}

func TestReadEncoderDelayRereadsPastLargeTag(t *testing.T) {
	var b bytes.Buffer
	b.Write(id3Header(20000))
	b.Write(make([]byte, 20000))
	b.Write(lameFrame(1500))
	if got := ReadEncoderDelay(bytes.NewReader(b.Bytes())); got != 1500 {
		t.Errorf("delay = %d, want 1500", got)
	}
}

func TestReadEncoderDelayDefaults(t *testing.T) {
	noXing := lameFrame(1234)
	copy(noXing[36:], "Nope")

	outOfRange := lameFrame(0)

	badVersion := lameFrame(1234)
	badVersion[158] = 0x01

	mono := lameFrame(1234) // mono frames put Xing after 17 bytes of side info
	mono[3] = 0xC0

	tests := []struct {
		name string
		data []byte
	}{
		{"short", make([]byte, 64)},
		{"no sync", make([]byte, 1024)},
		{"no xing", noXing},
		{"zero delay", outOfRange},
		{"unprintable version", badVersion},
		{"xing at wrong offset", mono},
	}
	for _, tt := range tests {
		if got := ReadEncoderDelay(bytes.NewReader(tt.data)); got != DefaultDelay {
			t.Errorf("%s: delay = %d, want %d", tt.name, got, DefaultDelay)
		}
	}
}

func TestSideInfoSize(t *testing.T) {
	tests := []struct {
		header uint32
		want   int
	}{
		{3<<19 | 0<<6, 32},
		{3<<19 | 3<<6, 17},
		{2<<19 | 1<<6, 17},
		{2<<19 | 3<<6, 9},
		{0<<19 | 3<<6, 9},
	}
	for _, tt := range tests {
		if got := sideInfoSize(tt.header); got != tt.want {
			t.Errorf("sideInfoSize(%08x) = %d, want %d", tt.header, got, tt.want)
		}
	}
}

func TestEncoderDelayPath(t *testing.T) {
	dir := t.TempDir()

	mp3Path := filepath.Join(dir, "track.MP3")
	if err := os.WriteFile(mp3Path, lameFrame(1234), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := EncoderDelay(mp3Path); got != 1234 {
		t.Errorf("EncoderDelay(mp3) = %d, want 1234", got)
	}

	flacPath := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(flacPath, lameFrame(1234), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := EncoderDelay(flacPath); got != 0 {
		t.Errorf("EncoderDelay(flac) = %d, want 0", got)
	}

	if got := EncoderDelay(filepath.Join(dir, "missing.mp3")); got != DefaultDelay {
		t.Errorf("EncoderDelay(missing) = %d, want %d", got, DefaultDelay)
	}
}
