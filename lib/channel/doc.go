// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel is the publish/subscribe transport that carries
// message frames between sns processes.
//
// A channel is a ring of fixed-size slots. Publishers [Channel.Put]
// whole frames; each subscriber handle keeps its own cursor and
// [Channel.Get]s either the next unread frame or, with Options.Last,
// the newest one. A publisher never waits for subscribers: a
// subscriber that falls more than a ring's length behind loses the
// oldest frames and learns so from [ErrMissedFrame].
//
// Two backings share one implementation:
//
//   - [Open] maps a ring file (normally under /dev/shm) MAP_SHARED so
//     any process on the host can attach by name. Publishers
//     serialize with flock(2); readers copy without locking and
//     detect torn reads by re-checking the slot sequence.
//   - [NewMemory] keeps the ring in process memory for tests and for
//     tools that wire producers and consumers in one binary.
//
// The ring file holds frames in the producing host's native byte
// order, as the frames themselves do. It is not meant to be copied
// between machines.
package channel
