// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package evloop multiplexes frames from several channels into one
// sequence of handler calls.
//
// Each [Handler] gets a reader goroutine blocked in Get on its
// channel. Frames are delivered to handler functions one at a time on
// the goroutine that called [Run], so handlers share state without
// locking. When Config.Period passes with no frame on any channel,
// Config.Periodic is called instead.
//
// Cancelling the context passed to Run is the shutdown signal for the
// loop and all of its readers.
package evloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/sns/lib/channel"
	"github.com/bureau-foundation/sns/lib/clock"
)

// Source is the part of a channel handle a reader needs.
type Source interface {
	Name() string
	SlotSize() int
	Get(ctx context.Context, buf []byte, opts channel.Options) (int, error)
}

// Handler binds a channel to the function that processes its frames.
type Handler struct {
	Source Source

	// Last reads only the newest frame, dropping any backlog. Use it
	// for state channels where only the current value matters.
	Last bool

	// Handle processes one frame. The slice is only valid for the
	// duration of the call. A non-nil error stops the loop.
	Handle func(frame []byte) error
}

// Config configures Run.
type Config struct {
	Handlers []Handler

	// Period is the quiet interval after which Periodic runs. Zero
	// disables the periodic callback.
	Period time.Duration

	// Periodic runs on the loop goroutine after Period with no frames.
	// A non-nil error stops the loop.
	Periodic func() error

	// Clock drives the period timer. Default: clock.Real().
	Clock clock.Clock

	// Logger receives timeout (debug) and missed-frame (warn) reports.
	// Default: discard.
	Logger *slog.Logger
}

// event is one frame handed from a reader to the loop. done is
// signalled when the handler returns so the reader can reuse its
// buffer.
type event struct {
	handler int
	frame   []byte
	done    chan struct{}
}

// Run dispatches frames until ctx is cancelled, a handler or Periodic
// returns an error, or a reader fails. It returns nil on cancellation.
func Run(ctx context.Context, config Config) error {
	if len(config.Handlers) == 0 && config.Periodic == nil {
		return errors.New("evloop: no handlers and no periodic callback")
	}
	for i, handler := range config.Handlers {
		if handler.Source == nil || handler.Handle == nil {
			return fmt.Errorf("evloop: handler %d needs a source and a handle function", i)
		}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(ctx)

	events := make(chan event)
	readerErrors := make(chan error, len(config.Handlers))
	var readers sync.WaitGroup
	for index, handler := range config.Handlers {
		readers.Add(1)
		go func() {
			defer readers.Done()
			if err := read(ctx, index, handler, events, logger); err != nil {
				readerErrors <- err
			}
		}()
	}
	defer func() {
		cancel()
		readers.Wait()
	}()

	// One timer, re-armed on every frame and every tick: the periodic
	// callback runs only after a full quiet period.
	var timer *clock.Timer
	var tick <-chan time.Time
	if config.Period > 0 && config.Periodic != nil {
		timer = config.Clock.NewTimer(config.Period)
		defer timer.Stop()
		tick = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readerErrors:
			return err
		case ev := <-events:
			if timer != nil {
				timer.Reset(config.Period)
			}
			handler := config.Handlers[ev.handler]
			err := handler.Handle(ev.frame)
			close(ev.done)
			if err != nil {
				return fmt.Errorf("handling frame from %s: %w", handler.Source.Name(), err)
			}
		case <-tick:
			logger.Debug("no frames within period", "period", config.Period)
			if err := config.Periodic(); err != nil {
				return fmt.Errorf("periodic callback: %w", err)
			}
			timer.Reset(config.Period)
		}
	}
}

// read feeds one channel's frames to the loop until ctx ends.
func read(ctx context.Context, index int, handler Handler, events chan<- event, logger *slog.Logger) error {
	buf := make([]byte, handler.Source.SlotSize())
	opts := channel.Options{Last: handler.Last, Wait: true}
	for {
		n, err := handler.Source.Get(ctx, buf, opts)
		switch {
		case err == nil:
		case errors.Is(err, channel.ErrMissedFrame):
			logger.Warn("missed frames", "channel", handler.Source.Name())
		case errors.Is(err, channel.ErrOverflow):
			logger.Warn("frame larger than buffer, growing", "channel", handler.Source.Name(), "size", n)
			buf = make([]byte, n)
			continue
		case errors.Is(err, channel.ErrTimeout):
			logger.Debug("read timed out", "channel", handler.Source.Name())
			continue
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reading %s: %w", handler.Source.Name(), err)
		}

		done := make(chan struct{})
		select {
		case events <- event{handler: index, frame: buf[:n], done: done}:
		case <-ctx.Done():
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil
		}
	}
}
