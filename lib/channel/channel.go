// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Options selects how Get picks and waits for a frame.
type Options struct {
	// Last returns the newest frame, skipping any unread older ones.
	// Without Last, frames are returned in publication order.
	Last bool

	// Wait blocks until a frame newer than the cursor arrives or ctx
	// ends. Without Wait, Get fails with ErrStale when nothing is
	// unread.
	Wait bool
}

// Channel is a handle on a ring with its own read cursor. Put is safe
// for concurrent use; Get on one handle must not be called
// concurrently. Use Subscribe for an independent reader.
type Channel struct {
	ring   *ring
	cursor uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

func newHandle(r *ring) *Channel {
	r.refs.Add(1)
	return &Channel{ring: r, cursor: r.head()}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.ring.name }

// SlotSize returns the largest frame the channel carries.
func (c *Channel) SlotSize() int { return c.ring.slotSize }

// Slots returns the ring length.
func (c *Channel) Slots() int { return c.ring.slots }

// Subscribe returns a new handle on the same ring whose cursor starts
// at the newest frame, so only later frames are unread.
func (c *Channel) Subscribe() *Channel {
	return newHandle(c.ring)
}

// Put publishes frame. Fails with ErrOverflow when frame is larger
// than a slot.
func (c *Channel) Put(frame []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.ring.put(frame)
}

// Get copies a frame into buf and returns its length.
//
// Errors: ErrStale when nothing is unread and opts.Wait is false;
// ErrTimeout when ctx's deadline passes while waiting; ctx.Err() when
// ctx is cancelled; ErrOverflow, with n set to the frame length and the
// cursor unchanged, when buf is too small. ErrMissedFrame is returned
// together with a valid frame of length n: the frame was delivered,
// but older unread frames were lost.
func (c *Channel) Get(ctx context.Context, buf []byte, opts Options) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	var poll <-chan time.Time
	if opts.Wait && c.ring.poll > 0 {
		ticker := time.NewTicker(c.ring.poll)
		defer ticker.Stop()
		poll = ticker.C
	}
	for {
		wake := c.ring.waiter()
		result := c.ring.read(c.cursor, buf, opts.Last)
		if result.found {
			if result.err != nil {
				return 0, result.err
			}
			if result.seq == 0 {
				return result.size, fmt.Errorf("%w: %d-byte frame, %d-byte buffer", ErrOverflow, result.size, len(buf))
			}
			c.cursor = result.seq
			if result.missed {
				return result.size, ErrMissedFrame
			}
			return result.size, nil
		}
		if !opts.Wait {
			return 0, ErrStale
		}
		select {
		case <-wake:
		case <-poll:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return 0, ErrTimeout
			}
			return 0, ctx.Err()
		}
	}
}

// Flush marks every published frame as read.
func (c *Channel) Flush() {
	c.cursor = c.ring.head()
}

// Close releases the handle. The ring's storage is released when its
// last handle closes.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.ring.refs.Add(-1) == 0 {
			err = c.ring.release()
		}
	})
	return err
}
