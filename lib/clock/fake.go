// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Set or Advance is called.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.waitersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for testing.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock reaches
// now+d. If d <= 0, the channel receives immediately without
// registering a waiter.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.waiters = append(c.waiters, &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.waitersChanged.Broadcast()
	return channel
}

// NewTimer returns a Timer that fires once the clock reaches now+d.
// A pending timer counts toward WaitForTimers and PendingCount.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{channel: channel}
	c.schedule(waiter, d)
	return &Timer{
		C: channel,
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := c.unschedule(waiter)
			drain(channel)
			return active
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := c.unschedule(waiter)
			drain(channel)
			c.schedule(waiter, d)
			return active
		},
	}
}

// schedule arms waiter for now+d, firing at once if d <= 0. Callers
// hold c.mu.
func (c *FakeClock) schedule(waiter *fakeWaiter, d time.Duration) {
	if d <= 0 {
		waiter.channel <- c.current
		return
	}
	waiter.deadline = c.current.Add(d)
	c.waiters = append(c.waiters, waiter)
	c.waitersChanged.Broadcast()
}

// unschedule removes waiter and reports whether it was pending.
// Callers hold c.mu.
func (c *FakeClock) unschedule(waiter *fakeWaiter) bool {
	for i, pending := range c.waiters {
		if pending == waiter {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func drain(channel chan time.Time) {
	select {
	case <-channel:
	default:
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline is at or before the new time, in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set moves the clock to t. Moving backwards is allowed and fires
// nothing; tests use it to place a message exactly on a boundary.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t

	var due, remaining []*fakeWaiter
	for _, waiter := range c.waiters {
		if waiter.deadline.After(t) {
			remaining = append(remaining, waiter)
		} else {
			due = append(due, waiter)
		}
	}
	c.waiters = remaining
	defer c.mu.Unlock()

	// Sends happen under the lock so a concurrent Timer.Reset cannot
	// receive a value from the schedule it replaced.
	sort.Slice(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, waiter := range due {
		select {
		case waiter.channel <- t:
		default:
		}
	}
}

// WaitForTimers blocks until at least n waiters are pending.
//
//	go loop.Run(ctx)
//	fakeClock.WaitForTimers(1)          // loop armed its period timer
//	fakeClock.Advance(10 * time.Millisecond)
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.waitersChanged.Wait()
	}
}

// PendingCount returns the number of waiters that have not fired.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
