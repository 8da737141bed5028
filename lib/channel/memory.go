// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import "unsafe"

// MemoryOptions sizes an in-process ring. Zero fields take the
// package defaults.
type MemoryOptions struct {
	Slots    int
	SlotSize int
}

// NewMemory returns a handle on a new in-process ring. Further
// handles come from Subscribe.
func NewMemory(name string, options MemoryOptions) (*Channel, error) {
	g := geometry{slots: options.Slots, slotSize: options.SlotSize}
	if g.slots == 0 {
		g.slots = DefaultSlots
	}
	if g.slotSize == 0 {
		g.slotSize = DefaultSlotSize
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	// Backed by words so the sequence fields are 8-aligned for
	// atomic access.
	words := make([]uint64, g.totalSize()/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
	r := newRing(name, data, g)
	r.format()
	return newHandle(r), nil
}
