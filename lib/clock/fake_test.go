// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockSetBackwards(t *testing.T) {
	clock := Fake(epoch)
	earlier := epoch.Add(-time.Hour)
	clock.Set(earlier)
	if got := clock.Now(); !got.Equal(earlier) {
		t.Fatalf("Now() after Set = %v, want %v", got, earlier)
	}
}

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	select {
	case <-channel:
		t.Fatal("After fired before Advance")
	default:
	}

	clock.Advance(3 * time.Second)

	select {
	case fired := <-channel:
		if !fired.Equal(epoch.Add(3 * time.Second)) {
			t.Errorf("fired at %v, want %v", fired, epoch.Add(3*time.Second))
		}
	default:
		t.Fatal("After did not fire after Advance")
	}
	if count := clock.PendingCount(); count != 0 {
		t.Errorf("PendingCount() = %d, want 0", count)
	}
}

func TestFakeClockAfterPartialAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(10 * time.Second)

	clock.Advance(9*time.Second + 999*time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(time.Millisecond)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeClockAfterZeroDuration(t *testing.T) {
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
	if count := clock.PendingCount(); count != 0 {
		t.Errorf("PendingCount() = %d, want 0", count)
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Second)
	<-done
}

func TestFakeClockConcurrentAccess(t *testing.T) {
	clock := Fake(epoch)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				clock.Now()
				clock.After(time.Millisecond)
			}
		}()
	}
	for range 100 {
		clock.Advance(time.Millisecond)
	}
	wg.Wait()
}

func TestFakeTimerResetPostponesFiring(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(2 * time.Second)

	clock.Advance(time.Second)
	if active := timer.Reset(2 * time.Second); !active {
		t.Error("Reset of a pending timer returned false")
	}
	if count := clock.PendingCount(); count != 1 {
		t.Fatalf("PendingCount() after Reset = %d, want 1", count)
	}

	clock.Advance(time.Second)
	select {
	case <-timer.C:
		t.Fatal("timer fired at its original deadline after Reset")
	default:
	}

	clock.Advance(time.Second)
	select {
	case fired := <-timer.C:
		if want := epoch.Add(3 * time.Second); !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("timer did not fire at its reset deadline")
	}

	if active := timer.Reset(time.Second); active {
		t.Error("Reset of a fired timer returned true")
	}
	if count := clock.PendingCount(); count != 1 {
		t.Errorf("PendingCount() after re-arming = %d, want 1", count)
	}
}

func TestFakeTimerStopDropsPendingValue(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)
	clock.Advance(time.Second)
	if timer.Stop() {
		t.Error("Stop of a fired timer returned true")
	}
	select {
	case <-timer.C:
		t.Error("received a value after Stop")
	default:
	}
	if count := clock.PendingCount(); count != 0 {
		t.Errorf("PendingCount() = %d, want 0", count)
	}
}

func TestImplementsClock(t *testing.T) {
	var _ Clock = Fake(epoch)
	var _ Clock = Real()
}
