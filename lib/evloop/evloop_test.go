// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package evloop

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sns/lib/channel"
	"github.com/bureau-foundation/sns/lib/clock"
	"github.com/bureau-foundation/sns/lib/testutil"
)

const period = 10 * time.Millisecond

func memoryChannel(t *testing.T) *channel.Channel {
	t.Helper()
	c, err := channel.NewMemory(testutil.UniqueID("evloop"), channel.MemoryOptions{Slots: 8, SlotSize: 64})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// runAsync starts Run and returns a channel carrying its result.
func runAsync(ctx context.Context, config Config) <-chan error {
	result := make(chan error, 1)
	go func() { result <- Run(ctx, config) }()
	return result
}

func TestFramesReachTheirHandlers(t *testing.T) {
	state := memoryChannel(t)
	ref := memoryChannel(t)
	stateReader, refReader := state.Subscribe(), ref.Subscribe()
	defer stateReader.Close()
	defer refReader.Close()

	seen := make(chan string, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, Config{
		Handlers: []Handler{
			{Source: stateReader, Handle: func(frame []byte) error { seen <- "state:" + string(frame); return nil }},
			{Source: refReader, Handle: func(frame []byte) error { seen <- "ref:" + string(frame); return nil }},
		},
	})

	if err := state.Put([]byte("s1")); err != nil {
		t.Fatal(err)
	}
	if got := testutil.RequireReceive(t, seen, 5*time.Second, "state frame"); got != "state:s1" {
		t.Errorf("first delivery = %q, want state:s1", got)
	}
	if err := ref.Put([]byte("r1")); err != nil {
		t.Fatal(err)
	}
	if got := testutil.RequireReceive(t, seen, 5*time.Second, "ref frame"); got != "ref:r1" {
		t.Errorf("second delivery = %q, want ref:r1", got)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "loop exit"); err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}

func TestPeriodicFiresOnlyAfterQuietPeriod(t *testing.T) {
	fake := clock.Fake(time.Unix(100, 0))
	source := memoryChannel(t)
	reader := source.Subscribe()
	defer reader.Close()

	events := make(chan string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, Config{
		Handlers: []Handler{{Source: reader, Handle: func(frame []byte) error {
			events <- string(frame)
			return nil
		}}},
		Period:   period,
		Periodic: func() error { events <- "tick"; return nil },
		Clock:    fake,
	})

	fake.WaitForTimers(1)
	fake.Advance(period / 2)
	if err := source.Put([]byte("A")); err != nil {
		t.Fatal(err)
	}
	if got := testutil.RequireReceive(t, events, 5*time.Second, "frame A"); got != "A" {
		t.Fatalf("event = %q, want A", got)
	}
	if pending := fake.PendingCount(); pending != 1 {
		t.Fatalf("PendingCount() = %d after a frame, want 1 re-armed timer", pending)
	}

	// The original deadline passes here, but frame A re-armed the
	// timer, so the periodic callback must not run.
	fake.Advance(period / 2)
	if err := source.Put([]byte("B")); err != nil {
		t.Fatal(err)
	}
	if got := testutil.RequireReceive(t, events, 5*time.Second, "frame B"); got != "B" {
		t.Fatalf("event = %q, want B (periodic fired early?)", got)
	}
	if pending := fake.PendingCount(); pending != 1 {
		t.Fatalf("PendingCount() = %d after two frames, want 1", pending)
	}

	fake.Advance(period)
	if got := testutil.RequireReceive(t, events, 5*time.Second, "periodic"); got != "tick" {
		t.Errorf("event = %q, want tick", got)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "loop exit"); err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestHandlerErrorStopsLoop(t *testing.T) {
	source := memoryChannel(t)
	reader := source.Subscribe()
	defer reader.Close()

	failure := errors.New("bad frame")
	done := runAsync(context.Background(), Config{
		Handlers: []Handler{{Source: reader, Handle: func([]byte) error { return failure }}},
	})
	if err := source.Put([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := testutil.RequireReceive(t, done, 5*time.Second, "loop exit"); !errors.Is(err, failure) {
		t.Errorf("Run = %v, want %v", err, failure)
	}
}

func TestPeriodicErrorStopsLoop(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	failure := errors.New("halt failed")
	done := runAsync(context.Background(), Config{
		Period:   period,
		Periodic: func() error { return failure },
		Clock:    fake,
	})
	fake.WaitForTimers(1)
	fake.Advance(period)
	if err := testutil.RequireReceive(t, done, 5*time.Second, "loop exit"); !errors.Is(err, failure) {
		t.Errorf("Run = %v, want %v", err, failure)
	}
}

// scriptedSource returns queued results from Get, then blocks until
// the context ends.
type scriptedSource struct {
	results []scriptedResult
}

type scriptedResult struct {
	frame string
	err   error
}

func (s *scriptedSource) Name() string  { return "scripted" }
func (s *scriptedSource) SlotSize() int { return 64 }

func (s *scriptedSource) Get(ctx context.Context, buf []byte, _ channel.Options) (int, error) {
	if len(s.results) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	next := s.results[0]
	s.results = s.results[1:]
	return copy(buf, next.frame), next.err
}

func TestMissedFrameIsDeliveredWithWarning(t *testing.T) {
	var logOutput bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelDebug}))
	source := &scriptedSource{results: []scriptedResult{
		{err: channel.ErrTimeout},
		{frame: "late", err: channel.ErrMissedFrame},
	}}

	seen := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, Config{
		Handlers: []Handler{{Source: source, Handle: func(frame []byte) error { seen <- string(frame); return nil }}},
		Logger:   logger,
	})
	if got := testutil.RequireReceive(t, seen, 5*time.Second, "missed frame delivery"); got != "late" {
		t.Errorf("delivered %q, want late", got)
	}
	cancel()
	testutil.RequireReceive(t, done, 5*time.Second, "loop exit")

	output := logOutput.String()
	if !strings.Contains(output, "level=WARN") || !strings.Contains(output, "missed frames") {
		t.Errorf("log output %q lacks a missed-frame warning", output)
	}
	if !strings.Contains(output, "level=DEBUG") || !strings.Contains(output, "read timed out") {
		t.Errorf("log output %q lacks a timeout debug line", output)
	}
}

func TestReaderErrorStopsLoop(t *testing.T) {
	broken := errors.New("ring unmapped")
	source := &scriptedSource{results: []scriptedResult{{err: broken}}}
	done := runAsync(context.Background(), Config{
		Handlers: []Handler{{Source: source, Handle: func([]byte) error { return nil }}},
	})
	if err := testutil.RequireReceive(t, done, 5*time.Second, "loop exit"); !errors.Is(err, broken) {
		t.Errorf("Run = %v, want %v", err, broken)
	}
}

func TestRunValidatesConfig(t *testing.T) {
	if err := Run(context.Background(), Config{}); err == nil {
		t.Error("Run with empty config succeeded")
	}
	if err := Run(context.Background(), Config{Handlers: []Handler{{}}}); err == nil {
		t.Error("Run with incomplete handler succeeded")
	}
}
