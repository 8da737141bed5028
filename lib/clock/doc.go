// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source used to stamp and judge
// messages on the bus.
//
// Header stamping (creation time), staleness checks (creation time plus
// validity duration) and the event loop's periodic wake-up all read time
// through a Clock instead of calling the time package directly. In
// production, Real() provides wall-clock time. In tests, Fake() provides
// a clock that moves only when the test calls Set or Advance, so expiry
// boundaries can be hit to the nanosecond.
//
// # FakeClock Synchronization
//
// A goroutine that calls After on a FakeClock registers a pending
// waiter. Use WaitForTimers to block until the expected number of
// waiters exist before calling Advance; this removes the race between
// a loop arming its timer and the test moving time.
package clock
