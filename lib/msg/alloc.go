// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

// Allocator supplies the bytes a message is built in. The allocator
// owns the memory: heap frames are reclaimed by the garbage collector,
// region frames by the region's Reset, Release or Pop.
//
// Alloc returns exactly size bytes. Their contents are unspecified;
// VarType.Init zeroes them before stamping.
type Allocator interface {
	Alloc(size int) ([]byte, error)
}

// Heap allocates from the Go heap.
var Heap Allocator = heapAllocator{}

type heapAllocator struct{}

func (heapAllocator) Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}
