// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"slices"
	"sync"
)

// Static is a Loader over entries registered at startup by packages
// compiled into the binary.
type Static struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStatic returns an empty static table.
func NewStatic() *Static {
	return &Static{entries: make(map[string]Entry)}
}

// Register adds or replaces the entry for typeName. Register after the
// table has been consulted by a Registry only affects names that
// registry has not resolved yet.
func (s *Static) Register(typeName string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[typeName] = entry
}

// Load implements Loader.
func (s *Static) Load(typeName string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[typeName]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q not compiled in", ErrNotFound, typeName)
	}
	return entry, nil
}

// Names returns the registered type names, sorted.
func (s *Static) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
