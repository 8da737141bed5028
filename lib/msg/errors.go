// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"errors"
	"fmt"
)

var (
	// ErrShortFrame reports a frame smaller than an empty message of
	// its type (smaller than SizeN(0)).
	ErrShortFrame = errors.New("msg: frame smaller than an empty message")

	// ErrSizeMismatch reports a frame smaller than the size implied by
	// the count it declares.
	ErrSizeMismatch = errors.New("msg: frame smaller than its declared count requires")

	// ErrBufferTooSmall reports a caller-supplied buffer that cannot
	// hold the requested number of elements.
	ErrBufferTooSmall = errors.New("msg: buffer too small for requested count")
)

// FrameError describes a received frame that failed size validation.
// It wraps ErrShortFrame or ErrSizeMismatch.
type FrameError struct {
	// Type is the message type name the frame was validated against.
	Type string

	// FrameSize is the number of bytes delivered.
	FrameSize int

	// Count is the declared element count (zero for short frames,
	// where the count could not be read).
	Count uint64

	// Want is the minimum acceptable size. -1 when the declared count
	// is so large its size does not fit in an int.
	Want int

	Err error
}

func (e *FrameError) Error() string {
	if e.Want < 0 {
		return fmt.Sprintf("%s: %v (%d bytes, declared count %d overflows)", e.Type, e.Err, e.FrameSize, e.Count)
	}
	return fmt.Sprintf("%s: %v (%d bytes, need %d)", e.Type, e.Err, e.FrameSize, e.Want)
}

func (e *FrameError) Unwrap() error { return e.Err }
