// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/libindex/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, ord.String.Size(string(id)))
	ord.String.Marshal(string(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) == 0 {
		return "", ErrTruncatedData
	}
	s, _, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(s), nil
}

// Times are stored as Unix microseconds; the zero time is stored as 0.
func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microsToTime(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func documentSize(doc *core.Document) int {
	return ord.String.Size(string(doc.ID)) +
		ord.String.Size(doc.Filename) +
		ord.String.Size(doc.Path) +
		ord.String.Size(doc.ContentHash) +
		ord.String.Size(string(doc.Status)) +
		ord.String.Size(doc.ErrorText) +
		varint.Int.Size(doc.ChunkCount) +
		varint.Int64.Size(timeToMicros(doc.CreatedAt)) +
		varint.Int64.Size(timeToMicros(doc.LastIndexedAt))
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, documentSize(doc))
	n := ord.String.Marshal(string(doc.ID), buf)
	n += ord.String.Marshal(doc.Filename, buf[n:])
	n += ord.String.Marshal(doc.Path, buf[n:])
	n += ord.String.Marshal(doc.ContentHash, buf[n:])
	n += ord.String.Marshal(string(doc.Status), buf[n:])
	n += ord.String.Marshal(doc.ErrorText, buf[n:])
	n += varint.Int.Marshal(doc.ChunkCount, buf[n:])
	n += varint.Int64.Marshal(timeToMicros(doc.CreatedAt), buf[n:])
	varint.Int64.Marshal(timeToMicros(doc.LastIndexedAt), buf[n:])
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	r := reader{data: data}
	doc := &core.Document{
		ID:          core.ID(r.string()),
		Filename:    r.string(),
		Path:        r.string(),
		ContentHash: r.string(),
		Status:      core.Status(r.string()),
		ErrorText:   r.string(),
		ChunkCount:  r.int(),
	}
	doc.CreatedAt = microsToTime(r.int64())
	doc.LastIndexedAt = microsToTime(r.int64())
	if r.err != nil {
		return nil, r.err
	}
	return doc, nil
}

func chunkSize(chunk *core.Chunk) int {
	return ord.String.Size(string(chunk.ID)) +
		ord.String.Size(string(chunk.DocumentID)) +
		varint.Int.Size(chunk.Index) +
		ord.String.Size(chunk.Content) +
		varint.Int.Size(len(chunk.Embedding)) + 4*len(chunk.Embedding) +
		varint.Int64.Size(timeToMicros(chunk.CreatedAt))
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, chunkSize(chunk))
	n := ord.String.Marshal(string(chunk.ID), buf)
	n += ord.String.Marshal(string(chunk.DocumentID), buf[n:])
	n += varint.Int.Marshal(chunk.Index, buf[n:])
	n += ord.String.Marshal(chunk.Content, buf[n:])
	n += varint.Int.Marshal(len(chunk.Embedding), buf[n:])
	n += copy(buf[n:], EncodeVector(chunk.Embedding))
	varint.Int64.Marshal(timeToMicros(chunk.CreatedAt), buf[n:])
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	r := reader{data: data}
	chunk := &core.Chunk{
		ID:         core.ID(r.string()),
		DocumentID: core.ID(r.string()),
		Index:      r.int(),
		Content:    r.string(),
	}
	chunk.Embedding = r.vector()
	chunk.CreatedAt = microsToTime(r.int64())
	if r.err != nil {
		return nil, r.err
	}
	return chunk, nil
}

// EncodeVector packs a vector as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a little-endian float32 vector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: vector length %d is not a multiple of 4", ErrSerializationFailed, len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// reader walks a serialized record, keeping the first error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.data[r.off:])
	if err != nil {
		r.fail(err)
		return ""
	}
	r.off += n
	return v
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.data[r.off:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.off += n
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.data[r.off:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.off += n
	return v
}

func (r *reader) vector() []float32 {
	length := r.int()
	if r.err != nil {
		return nil
	}
	if length < 0 || r.off+4*length > len(r.data) {
		r.fail(ErrTruncatedData)
		return nil
	}
	if length == 0 {
		return nil
	}
	v, err := DecodeVector(r.data[r.off : r.off+4*length])
	if err != nil {
		r.fail(err)
		return nil
	}
	r.off += 4 * length
	return v
}
