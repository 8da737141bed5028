// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package arena

import (
	"fmt"
	"sync"
)

// Pool hands out goroutine-owned regions of a fixed size. Regions are
// reused: a Local returned to the pool keeps its mapping for the next
// acquirer. Pool is safe for concurrent use; the regions it hands out
// are not.
type Pool struct {
	size    int
	options Options

	mu     sync.Mutex
	idle   []*Region
	all    []*Region
	closed bool
}

// NewPool returns a pool of regions of size bytes each. No memory is
// mapped until the first Acquire.
func NewPool(size int, options Options) *Pool {
	return &Pool{size: size, options: options}
}

// Local is a region owned by the goroutine that acquired it.
type Local struct {
	*Region
	pool *Pool
}

// Acquire returns an idle region, mapping a new one when none is
// idle. The returned Local starts empty.
func (p *Pool) Acquire() (*Local, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if count := len(p.idle); count > 0 {
		region := p.idle[count-1]
		p.idle = p.idle[:count-1]
		return &Local{Region: region, pool: p}, nil
	}
	region, err := New(p.size, p.options)
	if err != nil {
		return nil, err
	}
	p.all = append(p.all, region)
	return &Local{Region: region, pool: p}, nil
}

// Return resets the region and hands it back to its pool. The Local
// must not be used afterwards.
func (l *Local) Return() {
	if l.Region == nil {
		return
	}
	region := l.Region
	l.Region = nil
	region.Reset()

	l.pool.mu.Lock()
	defer l.pool.mu.Unlock()
	if l.pool.closed {
		return
	}
	l.pool.idle = append(l.pool.idle, region)
}

// Close unmaps every region the pool created, including regions still
// held by goroutines.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var firstError error
	for _, region := range p.all {
		if err := region.Close(); err != nil && firstError == nil {
			firstError = fmt.Errorf("closing pooled region: %w", err)
		}
	}
	p.idle = nil
	p.all = nil
	return firstError
}
