// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"fmt"
	"math"
	"time"
)

// VarType is the framing engine for one vararray message type: a
// header, FieldsSize bytes of type-specific fields, a count, and count
// elements of type E. A VarType is created once per message type and
// is immutable; all of its methods are safe for concurrent use.
type VarType[E any] struct {
	layout   Layout
	element  Element[E]
	maxCount uint64
}

// NewVarType derives the layout of a vararray message type whose
// fixed fields occupy fieldsSize bytes with alignment fieldsAlign.
// The prefix size is computed here, once, and every size query uses
// it.
func NewVarType[E any](name string, fieldsSize, fieldsAlign int, element Element[E]) *VarType[E] {
	if fieldsAlign < 1 {
		fieldsAlign = 1
	}
	layout := newLayout(name, fieldsSize, fieldsAlign, 1, element.Name(), element.Size(), element.Align())
	return &VarType[E]{
		layout:   layout,
		element:  element,
		maxCount: uint64(math.MaxInt-layout.Prefix) / uint64(element.Size()),
	}
}

// Name returns the message type name.
func (t *VarType[E]) Name() string { return t.layout.Name }

// Layout returns the derived wire layout.
func (t *VarType[E]) Layout() Layout { return t.layout }

// SizeN returns the size in bytes of a message holding n elements.
// Panics if n is negative.
func (t *VarType[E]) SizeN(n int) int {
	if n < 0 {
		panic(fmt.Sprintf("msg: %s: negative element count %d", t.layout.Name, n))
	}
	return t.layout.Prefix + n*t.layout.ElementSize
}

// Init zeroes exactly SizeN(n) bytes of frame, stamps the header from
// producer, and sets the count to n. Zeroing happens first so the
// stamp survives. Returns the message view over frame[:SizeN(n)].
func (t *VarType[E]) Init(frame []byte, producer *Producer, n int) (Var[E], error) {
	size := t.SizeN(n)
	if len(frame) < size {
		return Var[E]{}, fmt.Errorf("%s: %w (%d bytes, need %d)", t.layout.Name, ErrBufferTooSmall, len(frame), size)
	}
	frame = frame[:size]
	clear(frame)
	var header Header
	producer.Fill(&header)
	putHeader(frame, &header)
	native.PutUint64(frame[t.layout.CountOffset:], uint64(n))
	return Var[E]{typ: t, frame: frame}, nil
}

// New allocates SizeN(n) bytes from allocator and initializes them as
// an n-element message. Allocation failures are returned unchanged so
// callers can match the allocator's sentinel errors.
func (t *VarType[E]) New(allocator Allocator, producer *Producer, n int) (Var[E], error) {
	frame, err := allocator.Alloc(t.SizeN(n))
	if err != nil {
		return Var[E]{}, fmt.Errorf("allocating %s[%d]: %w", t.layout.Name, n, err)
	}
	return t.Init(frame, producer, n)
}

// CheckSize validates a received frame against the size formula. It
// fails when the frame cannot hold even an empty message, or when it
// is shorter than the size implied by its declared count. Only the
// count field is read, and only after the frame is known to contain
// it.
func (t *VarType[E]) CheckSize(frame []byte) error {
	minimum := t.layout.Prefix
	if len(frame) < minimum {
		return &FrameError{Type: t.layout.Name, FrameSize: len(frame), Want: minimum, Err: ErrShortFrame}
	}
	count := native.Uint64(frame[t.layout.CountOffset:])
	if count > t.maxCount {
		return &FrameError{Type: t.layout.Name, FrameSize: len(frame), Count: count, Want: -1, Err: ErrSizeMismatch}
	}
	want := t.SizeN(int(count))
	if len(frame) < want {
		return &FrameError{Type: t.layout.Name, FrameSize: len(frame), Count: count, Want: want, Err: ErrSizeMismatch}
	}
	return nil
}

// View validates frame with CheckSize and returns a view over the
// bytes the message declares. Trailing bytes beyond the declared size
// are ignored. This is the only way consumers should interpret a
// received frame.
func (t *VarType[E]) View(frame []byte) (Var[E], error) {
	if err := t.CheckSize(frame); err != nil {
		return Var[E]{}, err
	}
	count := int(native.Uint64(frame[t.layout.CountOffset:]))
	return Var[E]{typ: t, frame: frame[:t.SizeN(count)]}, nil
}

// Var is a view of a vararray message. The zero Var is not usable;
// obtain one from VarType.New, Init or View.
type Var[E any] struct {
	typ   *VarType[E]
	frame []byte
}

// Type returns the message's framing engine.
func (m Var[E]) Type() *VarType[E] { return m.typ }

// Bytes returns the frame, exactly Size() bytes long. This is what
// producers hand to the transport.
func (m Var[E]) Bytes() []byte { return m.frame }

// Len returns the declared element count.
func (m Var[E]) Len() int {
	return int(native.Uint64(m.frame[m.typ.layout.CountOffset:]))
}

// Size returns SizeN(Len()): the number of bytes this message, as
// declared, occupies.
func (m Var[E]) Size() int {
	return m.typ.SizeN(m.Len())
}

func (m Var[E]) offset(index int) int {
	if index < 0 || index >= m.Len() {
		panic(fmt.Sprintf("msg: %s: element index %d out of range [0,%d)", m.typ.layout.Name, index, m.Len()))
	}
	return m.typ.layout.DataOffset + index*m.typ.layout.ElementSize
}

// At returns element i. Panics if i is out of range.
func (m Var[E]) At(index int) E {
	offset := m.offset(index)
	return m.typ.element.Get(m.frame[offset : offset+m.typ.layout.ElementSize])
}

// Set stores element i. Panics if i is out of range.
func (m Var[E]) Set(index int, value E) {
	offset := m.offset(index)
	m.typ.element.Put(m.frame[offset:offset+m.typ.layout.ElementSize], value)
}

// Elements returns a copy of all elements.
func (m Var[E]) Elements() []E {
	values := make([]E, m.Len())
	for i := range values {
		values[i] = m.At(i)
	}
	return values
}

// CopyFrom stores values into the leading elements and returns how
// many were copied: the smaller of len(values) and Len().
func (m Var[E]) CopyFrom(values []E) int {
	count := min(len(values), m.Len())
	for i := range count {
		m.Set(i, values[i])
	}
	return count
}

// Header decodes the message header.
func (m Var[E]) Header() Header {
	return readHeader(m.frame)
}

// SetHeader overwrites the message header.
func (m Var[E]) SetHeader(header Header) {
	putHeader(m.frame, &header)
}

// SetTime re-stamps the creation time and validity window in place.
func (m Var[E]) SetTime(now time.Time, validity time.Duration) {
	header := m.Header()
	header.SetTime(now, validity)
	m.SetHeader(header)
}

// Expired reports whether the message is stale at now.
func (m Var[E]) Expired(now time.Time) bool {
	header := m.Header()
	return header.IsExpired(now)
}

// fields returns the type-specific fixed fields.
func (m Var[E]) fields() []byte {
	return m.frame[HeaderSize : HeaderSize+m.typ.layout.FieldsSize]
}
