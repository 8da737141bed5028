// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package arena provides bump-allocated memory regions for building
// messages on a real-time control cycle without touching the Go heap.
//
// A [Region] is a fixed-size block of memory mapped outside the Go
// heap (mmap MAP_ANONYMOUS), optionally locked into RAM with mlock so
// the control loop never takes a page fault. Allocations bump a
// high-water mark; nothing is freed individually. Memory comes back in
// one of three ways:
//
//   - Reset, releasing everything at once;
//   - Release(mark), rewinding to a [Mark] taken earlier, usually
//     through a [Scope] guard whose deferred Close runs on every exit
//     path;
//   - Pop(frame), rewinding exactly the most recent allocation. Pops
//     must happen in strict last-allocated-first-released order; an
//     out-of-order Pop is refused with ErrNotLast rather than
//     corrupting later allocations.
//
// A Region performs no locking. A region shared between goroutines
// must be serialized by its owner.
//
// [Local] gives each goroutine its own region drawn from a [Pool], the
// replacement for a per-thread arena: acquire it at the top of a
// control cycle, allocate and Pop as needed, and return it. Frames
// allocated from a Local must not be handed to another goroutine
// without copying them first; once the Local is returned to its pool,
// the next acquirer reuses the same memory.
package arena
