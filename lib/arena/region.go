// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package arena

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Alignment is the alignment of every allocation.
const Alignment = 16

var (
	// ErrExhausted reports an allocation larger than the space left in
	// the region.
	ErrExhausted = errors.New("arena: region exhausted")

	// ErrNotLast reports a Pop of a frame that is not the most recent
	// live allocation.
	ErrNotLast = errors.New("arena: pop out of LIFO order")

	// ErrBadMark reports a Release to a mark that is not between the
	// region's base and its current high-water mark.
	ErrBadMark = errors.New("arena: mark outside live allocations")

	// ErrClosed reports use of a region after Close.
	ErrClosed = errors.New("arena: region closed")
)

// Options configures a Region.
type Options struct {
	// Lock locks the region into physical memory (mlock) so that
	// allocating from it never page-faults. Needs RLIMIT_MEMLOCK
	// headroom for the region size.
	Lock bool
}

// Region is a fixed-size bump allocator over memory mapped outside the
// Go heap. The zero value is not usable; call New.
type Region struct {
	data   []byte
	top    int
	locked bool

	// starts records the start offset of each live allocation, in
	// allocation order, so Pop can check LIFO order.
	starts []int
}

// Mark is a saved high-water mark.
type Mark struct {
	top   int
	depth int
}

// New maps a region of size bytes. The caller must Close it.
func New(size int, options Options) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena: region size must be positive, got %d", size)
	}
	size = (size + Alignment - 1) &^ (Alignment - 1)

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", size, err)
	}
	if options.Lock {
		if err := unix.Mlock(data); err != nil {
			unix.Munmap(data)
			return nil, fmt.Errorf("arena: mlock %d bytes: %w", size, err)
		}
	}
	return &Region{data: data, locked: options.Lock}, nil
}

// Alloc returns size bytes from the region. The bytes are not zeroed.
// Fails with ErrExhausted when the region cannot hold size more bytes.
func (r *Region) Alloc(size int) ([]byte, error) {
	if r.data == nil {
		return nil, ErrClosed
	}
	if size < 0 {
		return nil, fmt.Errorf("arena: negative allocation size %d", size)
	}
	start := r.top
	end := start + size
	if end > len(r.data) || end < start {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d free", ErrExhausted, size, len(r.data)-start, len(r.data))
	}
	r.top = min((end+Alignment-1)&^(Alignment-1), len(r.data))
	r.starts = append(r.starts, start)
	return r.data[start:end:end], nil
}

// Pop releases frame, which must be the most recent live allocation.
// The high-water mark rewinds to frame's start.
func (r *Region) Pop(frame []byte) error {
	if r.data == nil {
		return ErrClosed
	}
	if len(r.starts) == 0 {
		return fmt.Errorf("%w: no live allocations", ErrNotLast)
	}
	start, ok := r.offsetOf(frame)
	last := r.starts[len(r.starts)-1]
	if !ok || start != last {
		return fmt.Errorf("%w: frame at offset %d, last allocation at %d", ErrNotLast, start, last)
	}
	r.starts = r.starts[:len(r.starts)-1]
	r.top = last
	return nil
}

// offsetOf returns the offset of frame's first byte within the region.
func (r *Region) offsetOf(frame []byte) (int, bool) {
	if cap(frame) == 0 {
		return -1, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(r.data)))
	pointer := uintptr(unsafe.Pointer(unsafe.SliceData(frame)))
	if pointer < base || pointer >= base+uintptr(len(r.data)) {
		return -1, false
	}
	return int(pointer - base), true
}

// Mark returns the current high-water mark.
func (r *Region) Mark() Mark {
	return Mark{top: r.top, depth: len(r.starts)}
}

// Release rewinds the region to mark, releasing every allocation made
// after it.
func (r *Region) Release(mark Mark) error {
	if r.data == nil {
		return ErrClosed
	}
	if mark.top < 0 || mark.top > r.top || mark.depth > len(r.starts) {
		return fmt.Errorf("%w: mark at %d, high-water mark at %d", ErrBadMark, mark.top, r.top)
	}
	r.top = mark.top
	r.starts = r.starts[:mark.depth]
	return nil
}

// Reset releases every allocation.
func (r *Region) Reset() {
	r.top = 0
	r.starts = r.starts[:0]
}

// Used returns the number of bytes below the high-water mark,
// including alignment padding.
func (r *Region) Used() int { return r.top }

// Size returns the region's capacity in bytes.
func (r *Region) Size() int { return len(r.data) }

// Close unmaps the region. Frames allocated from it must not be used
// afterwards. Close is idempotent.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	var firstError error
	if r.locked {
		if err := unix.Munlock(r.data); err != nil {
			firstError = fmt.Errorf("arena: munlock: %w", err)
		}
	}
	if err := unix.Munmap(r.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("arena: munmap: %w", err)
	}
	r.data = nil
	r.top = 0
	r.starts = nil
	return firstError
}

// Scope is a guard that rewinds a region to the mark taken when the
// scope opened. Use it with defer so the rewind runs on every exit
// path:
//
//	scope := region.Scope()
//	defer scope.Close()
type Scope struct {
	region *Region
	mark   Mark
	closed bool
}

// Scope opens a scope at the current high-water mark.
func (r *Region) Scope() *Scope {
	return &Scope{region: r, mark: r.Mark()}
}

// Alloc allocates from the scope's region.
func (s *Scope) Alloc(size int) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("arena: allocation from closed scope")
	}
	return s.region.Alloc(size)
}

// Close releases everything allocated since the scope opened. Calling
// Close more than once is a no-op.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.region.Release(s.mark)
}
