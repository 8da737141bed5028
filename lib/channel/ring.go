// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Ring layout, native byte order:
//
//	0   magic     uint64
//	8   version   uint32
//	12  slots     uint32
//	16  slot size uint64
//	24  head      uint64  sequence of the newest frame, 0 if none
//	32  reserved
//	64  slot[0] ...
//
// Each slot is a sequence word, a length word, and slot-size data
// bytes rounded up to 8.
const (
	ringMagic   uint64 = 0x31474e4952534e53 // "SNSRING1"
	ringVersion uint32 = 1

	offMagic    = 0
	offVersion  = 8
	offSlots    = 12
	offSlotSize = 16
	offHead     = 24
	headerSize  = 64

	slotHeaderSize = 16

	// maxReadAttempts bounds retries on a slot that stays torn, which
	// only happens if a publisher died mid-write.
	maxReadAttempts = 1000
)

// Defaults for newly created rings.
const (
	DefaultSlots        = 16
	DefaultSlotSize     = 4096
	DefaultPollInterval = time.Millisecond
)

var native = binary.NativeEndian

// geometry is the shape of a ring.
type geometry struct {
	slots    int
	slotSize int
}

func (g geometry) stride() int { return slotHeaderSize + (g.slotSize+7)&^7 }

func (g geometry) totalSize() int { return headerSize + g.slots*g.stride() }

func (g geometry) validate() error {
	if g.slots < 1 || g.slots > 1<<20 {
		return fmt.Errorf("%w: slot count %d out of range", ErrBadRing, g.slots)
	}
	if g.slotSize < 1 || g.slotSize > 1<<30 {
		return fmt.Errorf("%w: slot size %d out of range", ErrBadRing, g.slotSize)
	}
	return nil
}

// ring is the storage shared by every handle on one channel in this
// process.
type ring struct {
	name string
	data []byte
	geometry

	// mu excludes in-process readers while a publisher writes, so the
	// race detector sees a clean happens-before. Cross-process
	// publishers are excluded by lock/unlock.
	mu     sync.RWMutex
	lock   func() error
	unlock func() error

	// poll is how often waiting readers re-check the head for
	// publishers in other processes. Zero for memory rings.
	poll time.Duration

	notifyMu sync.Mutex
	notify   chan struct{}

	refs    atomic.Int32
	release func() error
}

func newRing(name string, data []byte, g geometry) *ring {
	return &ring{
		name:     name,
		data:     data,
		geometry: g,
		lock:     func() error { return nil },
		unlock:   func() error { return nil },
		notify:   make(chan struct{}),
		release:  func() error { return nil },
	}
}

// format writes a fresh header. The rest of data must be zero.
func (r *ring) format() {
	native.PutUint64(r.data[offMagic:], ringMagic)
	native.PutUint32(r.data[offVersion:], ringVersion)
	native.PutUint32(r.data[offSlots:], uint32(r.slots))
	native.PutUint64(r.data[offSlotSize:], uint64(r.slotSize))
}

// readGeometry validates a ring header and returns its shape.
func readGeometry(header []byte) (geometry, error) {
	if len(header) < headerSize {
		return geometry{}, fmt.Errorf("%w: header is %d bytes", ErrBadRing, len(header))
	}
	if magic := native.Uint64(header[offMagic:]); magic != ringMagic {
		return geometry{}, fmt.Errorf("%w: magic %#x", ErrBadRing, magic)
	}
	if version := native.Uint32(header[offVersion:]); version != ringVersion {
		return geometry{}, fmt.Errorf("%w: version %d, want %d", ErrBadRing, version, ringVersion)
	}
	g := geometry{
		slots:    int(native.Uint32(header[offSlots:])),
		slotSize: int(native.Uint64(header[offSlotSize:])),
	}
	return g, g.validate()
}

func (r *ring) word(offset int) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&r.data[offset]))
}

func (r *ring) head() uint64 { return r.word(offHead).Load() }

func (r *ring) slotOffset(seq uint64) int {
	return headerSize + int((seq-1)%uint64(r.slots))*r.stride()
}

// waiter returns a channel closed by the next put in this process.
func (r *ring) waiter() <-chan struct{} {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	return r.notify
}

func (r *ring) broadcast() {
	r.notifyMu.Lock()
	close(r.notify)
	r.notify = make(chan struct{})
	r.notifyMu.Unlock()
}

func (r *ring) put(frame []byte) error {
	if len(frame) > r.slotSize {
		return fmt.Errorf("%w: %d-byte frame, %s slots hold %d", ErrOverflow, len(frame), r.name, r.slotSize)
	}
	r.mu.Lock()
	if err := r.lock(); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("locking %s: %w", r.name, err)
	}
	seq := r.head() + 1
	offset := r.slotOffset(seq)
	slot := r.word(offset)
	// Zero marks the slot as being rewritten for cross-process readers.
	slot.Store(0)
	native.PutUint64(r.data[offset+8:], uint64(len(frame)))
	copy(r.data[offset+slotHeaderSize:], frame)
	slot.Store(seq)
	r.word(offHead).Store(seq)
	unlockErr := r.unlock()
	r.mu.Unlock()

	r.broadcast()
	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", r.name, unlockErr)
	}
	return nil
}

// readResult is the outcome of one non-blocking read attempt.
type readResult struct {
	seq    uint64
	size   int
	missed bool
	found  bool
	err    error
}

// read copies the frame after cursor (or the newest frame when last
// is set) into buf. found is false when nothing newer than cursor
// exists. When buf is too small, size reports the frame length and
// seq is zero.
func (r *ring) read(cursor uint64, buf []byte, last bool) readResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for attempt := 0; ; attempt++ {
		if attempt == maxReadAttempts {
			return readResult{found: true, err: fmt.Errorf("%w: %s slot stayed inconsistent after %d reads", ErrBadRing, r.name, attempt)}
		}
		if attempt > 0 {
			runtime.Gosched()
		}
		head := r.head()
		if head <= cursor {
			return readResult{}
		}
		target := cursor + 1
		missed := false
		if last {
			target = head
		} else if oldest := oldestSeq(head, r.slots); target < oldest {
			target = oldest
			missed = true
		}

		offset := r.slotOffset(target)
		slot := r.word(offset)
		if slot.Load() != target {
			// Overwritten or mid-write by another process; re-read
			// the head and pick again.
			continue
		}
		size := int(native.Uint64(r.data[offset+8:]))
		if size > r.slotSize {
			continue
		}
		if size > len(buf) {
			if slot.Load() != target {
				continue
			}
			return readResult{size: size, found: true}
		}
		copy(buf, r.data[offset+slotHeaderSize:offset+slotHeaderSize+size])
		if slot.Load() != target {
			continue
		}
		return readResult{seq: target, size: size, missed: missed, found: true}
	}
}

func oldestSeq(head uint64, slots int) uint64 {
	if head <= uint64(slots) {
		return 1
	}
	return head - uint64(slots) + 1
}
