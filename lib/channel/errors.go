// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import "errors"

var (
	// ErrTimeout reports that the context deadline passed before a
	// frame arrived.
	ErrTimeout = errors.New("channel: timed out waiting for frame")

	// ErrMissedFrame accompanies a delivered frame when older frames
	// were overwritten before this subscriber read them.
	ErrMissedFrame = errors.New("channel: missed frames")

	// ErrOverflow reports a frame larger than a slot (Put) or larger
	// than the caller's buffer (Get).
	ErrOverflow = errors.New("channel: frame does not fit")

	// ErrStale reports that no unread frame is available and the
	// caller asked not to wait.
	ErrStale = errors.New("channel: no new frame")

	// ErrBadRing reports a ring file with the wrong magic, version or
	// geometry.
	ErrBadRing = errors.New("channel: invalid ring file")

	// ErrClosed reports use of a closed handle.
	ErrClosed = errors.New("channel: closed")
)
