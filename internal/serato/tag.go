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

package serato

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Description identifies the Serato grid attachment.
const Description = "Serato BeatGrid"

// VorbisKey is the FLAC comment holding the base64 encoded grid attachment.
const VorbisKey = "SERATO_BEATGRID"

// maxTagSize bounds the metadata read from a file.
const maxTagSize = 64 << 20

// ID3v2 text encodings.
const (
	encLatin1  = 0
	encUTF16   = 1
	encUTF16BE = 2
	encUTF8    = 3
)

/*
ReadFile returns the grid stored in the ID3v2 tag of an MP3 file or the
Vorbis comments of a FLAC file at path. ok is false when the file cannot be
read or carries no valid grid.
*/
func ReadFile(path string) (markers []Marker, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	return Read(f)
}

// Read returns the grid in the ID3v2 or FLAC metadata at the start of r.
func Read(r io.Reader) (markers []Marker, ok bool) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, false
	}
	r = io.MultiReader(bytes.NewReader(magic), r)
	switch {
	case string(magic[:3]) == "ID3":
		return ReadID3(r)
	case string(magic) == "fLaC":
		return ReadFLAC(r)
	}
	return nil, false
}

/*
ReadID3 scans the frames of a leading ID3v2.3 or ID3v2.4 tag for a GEOB frame
described as Description and decodes its payload.
*/
func ReadID3(r io.Reader) (markers []Marker, ok bool) {
	hdr := make([]byte, 10)
	if _, err := io.ReadFull(r, hdr); err != nil || string(hdr[:3]) != "ID3" {
		return nil, false
	}
	version, flags := hdr[3], hdr[5]
	if version != 3 && version != 4 {
		return nil, false
	}
	size := synchsafe(hdr[6:10])
	if size > maxTagSize {
		return nil, false
	}
	tag := make([]byte, size)
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, false
	}

	pos := 0
	if flags&0x40 != 0 && len(tag) >= 4 {
		if version == 4 {
			pos = synchsafe(tag[:4])
		} else {
			pos = 4 + int(binary.BigEndian.Uint32(tag))
		}
	}

	for pos+10 <= len(tag) && pos >= 0 {
		id := string(tag[pos : pos+4])
		if tag[pos] == 0 {
			break
		}
		n := frameSize(tag[pos+4:pos+8], version)
		body := pos + 10
		if n < 0 || body+n > len(tag) {
			slog.Debug("truncated id3 frame", "id", id)
			return nil, false
		}
		if id == "GEOB" {
			if markers, ok := parseGEOB(tag[body : body+n]); ok {
				return markers, true
			}
		}
		pos = body + n
	}
	return nil, false
}

// frameSize decodes a frame size: big-endian in v2.3, synchsafe in v2.4.
// Some v2.4 writers still use plain big-endian sizes; a byte with its high
// bit set cannot be synchsafe, so those are read as big-endian.
func frameSize(b []byte, version byte) int {
	if version == 4 && b[0]&0x80 == 0 && b[1]&0x80 == 0 && b[2]&0x80 == 0 && b[3]&0x80 == 0 {
		return synchsafe(b)
	}
	v := binary.BigEndian.Uint32(b)
	if v > maxTagSize {
		return -1
	}
	return int(v)
}

func parseGEOB(b []byte) ([]Marker, bool) {
	if len(b) < 1 {
		return nil, false
	}
	return parseAttachment(b[0], b[1:])
}

/*
parseAttachment parses the fields following the text encoding byte of a
general encapsulated object: MIME type, filename, description and payload.
*/
func parseAttachment(enc byte, b []byte) ([]Marker, bool) {
	_, rest, ok := cut(b, encLatin1)
	if !ok {
		return nil, false
	}
	if _, rest, ok = cut(rest, enc); !ok {
		return nil, false
	}
	var desc []byte
	if desc, rest, ok = cut(rest, enc); !ok {
		return nil, false
	}
	if decodeText(desc, enc) != Description {
		return nil, false
	}
	rest = bytes.TrimPrefix(rest, []byte(Description+"\x00"))
	return Decode(rest)
}

// cut splits b at the first string terminator for enc: a zero byte, or an
// aligned pair of zero bytes for the UTF-16 encodings.
func cut(b []byte, enc byte) (s, rest []byte, ok bool) {
	if enc == encUTF16 || enc == encUTF16BE {
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 && b[i+1] == 0 {
				return b[:i], b[i+2:], true
			}
		}
		return nil, nil, false
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return nil, nil, false
	}
	return b[:i], b[i+1:], true
}

func decodeText(b []byte, enc byte) string {
	var dec *encoding.Decoder
	switch enc {
	case encLatin1:
		dec = charmap.ISO8859_1.NewDecoder()
	case encUTF16:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case encUTF16BE:
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case encUTF8:
		return string(b)
	default:
		return ""
	}
	s, err := dec.Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}

/*
ReadFLAC scans the metadata blocks of a FLAC stream for a VORBIS_COMMENT
block holding VorbisKey and decodes its grid.
*/
func ReadFLAC(r io.Reader) (markers []Marker, ok bool) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != "fLaC" {
		return nil, false
	}
	hdr := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, false
		}
		last, typ := hdr[0]&0x80 != 0, hdr[0]&0x7F
		n := int64(hdr[1])<<16 | int64(hdr[2])<<8 | int64(hdr[3])
		if typ == 4 {
			block := make([]byte, n)
			if _, err := io.ReadFull(r, block); err != nil {
				return nil, false
			}
			if v, found := vorbisValue(block, VorbisKey); found {
				return decodeVorbisGrid(v)
			}
		} else if _, err := io.CopyN(io.Discard, r, n); err != nil {
			return nil, false
		}
		if last {
			return nil, false
		}
	}
}

// vorbisValue returns the value of the first comment named key.
func vorbisValue(b []byte, key string) (string, bool) {
	next := func() ([]byte, bool) {
		if len(b) < 4 {
			return nil, false
		}
		n := binary.LittleEndian.Uint32(b)
		if uint64(n) > uint64(len(b)-4) {
			return nil, false
		}
		s := b[4 : 4+n]
		b = b[4+n:]
		return s, true
	}
	if _, ok := next(); !ok { // vendor string
		return "", false
	}
	if len(b) < 4 {
		return "", false
	}
	count := binary.LittleEndian.Uint32(b)
	b = b[4:]
	for i := uint32(0); i < count; i++ {
		c, ok := next()
		if !ok {
			return "", false
		}
		k, v, found := strings.Cut(string(c), "=")
		if found && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// decodeVorbisGrid decodes the base64 attachment stored in a FLAC comment.
// Line breaks are ignored and padding is optional.
func decodeVorbisGrid(v string) ([]Marker, bool) {
	v = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, v)
	v = strings.TrimRight(v, "=")
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, false
	}
	return parseAttachment(encLatin1, b)
}

func synchsafe(b []byte) int {
	return int(b[0]&0x7F)<<21 | int(b[1]&0x7F)<<14 | int(b[2]&0x7F)<<7 | int(b[3]&0x7F)
}
