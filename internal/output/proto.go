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

package output

import (
	"github.com/gogo/protobuf/proto"

	"github.com/goccmack/beatgrid/internal/grid"
)

// AnalysisRecord is the protobuf form of an analysis.
type AnalysisRecord struct {
	Version      int32            `protobuf:"varint,1,opt,name=version,proto3" json:"version,omitempty"`
	FileName     string           `protobuf:"bytes,2,opt,name=file_name,json=fileName,proto3" json:"file_name,omitempty"`
	SampleRate   int32            `protobuf:"varint,3,opt,name=sample_rate,json=sampleRate,proto3" json:"sample_rate,omitempty"`
	Duration     float64          `protobuf:"fixed64,4,opt,name=duration,proto3" json:"duration,omitempty"`
	Offset       float64          `protobuf:"fixed64,5,opt,name=offset,proto3" json:"offset,omitempty"`
	OffsetSource string           `protobuf:"bytes,6,opt,name=offset_source,json=offsetSource,proto3" json:"offset_source,omitempty"`
	EncoderDelay int32            `protobuf:"varint,7,opt,name=encoder_delay,json=encoderDelay,proto3" json:"encoder_delay,omitempty"`
	Tolerance    float64          `protobuf:"fixed64,8,opt,name=tolerance,proto3" json:"tolerance,omitempty"`
	Beats        []float64        `protobuf:"fixed64,9,rep,packed,name=beats,proto3" json:"beats,omitempty"`
	Segments     []*SegmentRecord `protobuf:"bytes,10,rep,name=segments,proto3" json:"segments,omitempty"`
	Grid         []byte           `protobuf:"bytes,11,opt,name=grid,proto3" json:"grid,omitempty"`
}

func (m *AnalysisRecord) Reset()         { *m = AnalysisRecord{} }
func (m *AnalysisRecord) String() string { return proto.CompactTextString(m) }
func (*AnalysisRecord) ProtoMessage()    {}

// SegmentRecord is the protobuf form of a tempo segment.
type SegmentRecord struct {
	StartBeat int32   `protobuf:"varint,1,opt,name=start_beat,json=startBeat,proto3" json:"start_beat,omitempty"`
	EndBeat   int32   `protobuf:"varint,2,opt,name=end_beat,json=endBeat,proto3" json:"end_beat,omitempty"`
	Start     float64 `protobuf:"fixed64,3,opt,name=start,proto3" json:"start,omitempty"`
	Bpm       float64 `protobuf:"fixed64,4,opt,name=bpm,proto3" json:"bpm,omitempty"`
	Beats     int32   `protobuf:"varint,5,opt,name=beats,proto3" json:"beats,omitempty"`
}

func (m *SegmentRecord) Reset()         { *m = SegmentRecord{} }
func (m *SegmentRecord) String() string { return proto.CompactTextString(m) }
func (*SegmentRecord) ProtoMessage()    {}

// ProtoRecord returns the protobuf record of a. Beats are not rounded.
func ProtoRecord(a *grid.Analysis) *AnalysisRecord {
	r := &AnalysisRecord{
		Version:      Version,
		FileName:     a.Path,
		SampleRate:   int32(a.SampleRate),
		Duration:     a.Duration,
		Offset:       a.Calibration.Offset,
		OffsetSource: a.Calibration.Source,
		EncoderDelay: int32(a.EncoderDelay),
		Tolerance:    a.Tolerance,
		Beats:        a.Beats,
		Grid:         a.Grid,
	}
	for _, s := range a.Segments {
		r.Segments = append(r.Segments, &SegmentRecord{
			StartBeat: int32(s.StartBeat),
			EndBeat:   int32(s.EndBeat),
			Start:     s.Start,
			Bpm:       s.BPM,
			Beats:     int32(s.Beats),
		})
	}
	return r
}

// MarshalProto encodes a as an AnalysisRecord.
func MarshalProto(a *grid.Analysis) ([]byte, error) {
	return proto.Marshal(ProtoRecord(a))
}
