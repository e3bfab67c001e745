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
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/kinfolk/core"
)

const codecVersion = 1

// recordWriter runs an encoding function twice: once to size the record,
// once to fill the buffer.
type recordWriter struct {
	bs []byte
	n  int
}

func encode(fn func(w *recordWriter)) []byte {
	sizer := &recordWriter{}
	sizer.uint64(codecVersion)
	fn(sizer)

	w := &recordWriter{bs: make([]byte, sizer.n)}
	w.uint64(codecVersion)
	fn(w)
	return w.bs
}

func (w *recordWriter) uint64(v uint64) {
	if w.bs == nil {
		w.n += varint.Uint64.Size(v)
		return
	}
	w.n += varint.Uint64.Marshal(v, w.bs[w.n:])
}

func (w *recordWriter) int64(v int64) {
	if w.bs == nil {
		w.n += varint.Int64.Size(v)
		return
	}
	w.n += varint.Int64.Marshal(v, w.bs[w.n:])
}

func (w *recordWriter) int(v int) {
	w.int64(int64(v))
}

func (w *recordWriter) string(v string) {
	if w.bs == nil {
		w.n += ord.String.Size(v)
		return
	}
	w.n += ord.String.Marshal(v, w.bs[w.n:])
}

func (w *recordWriter) time(v time.Time) {
	if v.IsZero() {
		w.int64(0)
		return
	}
	w.int64(v.UnixMicro())
}

func (w *recordWriter) vector(v []float32) {
	w.uint64(uint64(len(v)))
	for _, f := range v {
		w.uint64(uint64(math.Float32bits(f)))
	}
}

// recordReader decodes fields in order. The first failure sticks; later
// reads return zero values.
type recordReader struct {
	bs  []byte
	n   int
	err error
}

func decode(data []byte) *recordReader {
	r := &recordReader{bs: data}
	if v := r.uint64(); r.err == nil && v != codecVersion {
		r.err = fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	return r
}

func (r *recordReader) fail(err error) {
	r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}

func (r *recordReader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	if r.n >= len(r.bs) {
		r.fail(ErrTruncatedData)
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *recordReader) int64() int64 {
	if r.err != nil {
		return 0
	}
	if r.n >= len(r.bs) {
		r.fail(ErrTruncatedData)
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *recordReader) int() int {
	return int(r.int64())
}

func (r *recordReader) string() string {
	if r.err != nil {
		return ""
	}
	if r.n >= len(r.bs) {
		r.fail(ErrTruncatedData)
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return ""
	}
	r.n += n
	return v
}

func (r *recordReader) time() time.Time {
	micros := r.int64()
	if micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func (r *recordReader) vector() []float32 {
	length := r.uint64()
	if r.err != nil || length == 0 {
		return nil
	}
	// Each element takes at least one byte.
	if length > uint64(len(r.bs)-r.n) {
		r.fail(ErrTruncatedData)
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		v[i] = math.Float32frombits(uint32(r.uint64()))
	}
	if r.err != nil {
		return nil
	}
	return v
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, ErrTruncatedData)
	}
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalPassage serializes a Passage to bytes.
func MarshalPassage(p *core.Passage) []byte {
	return encode(func(w *recordWriter) {
		w.uint64(uint64(p.Id))
		w.string(p.SourceID)
		w.string(p.Locator)
		w.string(p.Text)
		w.vector(p.Vector)
		w.time(p.InsertedAt)
	})
}

// UnmarshalPassage deserializes a Passage from bytes.
func UnmarshalPassage(data []byte) (*core.Passage, error) {
	r := decode(data)
	p := &core.Passage{
		Id:       core.ID(r.uint64()),
		SourceID: r.string(),
		Locator:  r.string(),
		Text:     r.string(),
		Vector:   r.vector(),
	}
	p.InsertedAt = r.time()
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// MarshalPerson serializes a Person to bytes.
func MarshalPerson(p *core.Person) []byte {
	return encode(func(w *recordWriter) {
		w.uint64(uint64(p.Id))
		w.string(p.GivenName)
		w.string(p.MiddleName)
		w.string(p.Surname)
		w.string(p.MaidenName)
		w.int(p.BirthYear)
		w.string(p.BirthPlace)
		w.int(p.DeathYear)
		w.string(p.DeathPlace)
		w.string(p.SourceID)
		w.string(p.Locator)
	})
}

// UnmarshalPerson deserializes a Person from bytes.
func UnmarshalPerson(data []byte) (*core.Person, error) {
	r := decode(data)
	p := &core.Person{
		Id:         core.ID(r.uint64()),
		GivenName:  r.string(),
		MiddleName: r.string(),
		Surname:    r.string(),
		MaidenName: r.string(),
		BirthYear:  r.int(),
		BirthPlace: r.string(),
		DeathYear:  r.int(),
		DeathPlace: r.string(),
		SourceID:   r.string(),
		Locator:    r.string(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// MarshalRelationship serializes a Relationship to bytes.
func MarshalRelationship(rel *core.Relationship) []byte {
	return encode(func(w *recordWriter) {
		w.uint64(uint64(rel.Id))
		w.uint64(uint64(rel.PersonID))
		w.uint64(uint64(rel.RelatedID))
		w.string(rel.Type)
		w.int(rel.StartYear)
		w.string(rel.SourceID)
		w.string(rel.Locator)
	})
}

// UnmarshalRelationship deserializes a Relationship from bytes.
func UnmarshalRelationship(data []byte) (*core.Relationship, error) {
	r := decode(data)
	rel := &core.Relationship{
		Id:        core.ID(r.uint64()),
		PersonID:  core.ID(r.uint64()),
		RelatedID: core.ID(r.uint64()),
		Type:      r.string(),
		StartYear: r.int(),
		SourceID:  r.string(),
		Locator:   r.string(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return rel, nil
}

// MarshalFact serializes a Fact to bytes.
func MarshalFact(f *core.Fact) []byte {
	return encode(func(w *recordWriter) {
		w.uint64(uint64(f.Id))
		w.uint64(uint64(f.PersonID))
		w.string(string(f.Type))
		w.int(f.Year)
		w.string(f.Place)
		w.string(f.Description)
		w.string(f.SourceID)
		w.string(f.Locator)
	})
}

// UnmarshalFact deserializes a Fact from bytes.
func UnmarshalFact(data []byte) (*core.Fact, error) {
	r := decode(data)
	f := &core.Fact{
		Id:          core.ID(r.uint64()),
		PersonID:    core.ID(r.uint64()),
		Type:        core.Predicate(r.string()),
		Year:        r.int(),
		Place:       r.string(),
		Description: r.string(),
		SourceID:    r.string(),
		Locator:     r.string(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}
