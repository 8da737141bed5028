// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/sns/lib/channel"
	"github.com/bureau-foundation/sns/lib/codec"
	"github.com/bureau-foundation/sns/lib/dispatch"
	"github.com/bureau-foundation/sns/lib/evloop"
	"github.com/bureau-foundation/sns/lib/msg"
	"github.com/bureau-foundation/sns/lib/record"
)

// readTimeout bounds each wait for a frame so shutdown and debug
// timeout reports happen even on a silent channel.
const readTimeout = time.Second

// dump feeds every frame read from source to output until ctx is
// cancelled. Frames that fail validation are logged and skipped; any
// other output error stops the dump.
func dump(ctx context.Context, source evloop.Source, output sink, timeout time.Duration, logger *slog.Logger) error {
	buf := make([]byte, source.SlotSize())
	for {
		readCtx, cancel := context.WithTimeout(ctx, timeout)
		n, err := source.Get(readCtx, buf, channel.Options{Wait: true})
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, channel.ErrMissedFrame):
			logger.Warn("missed frame")
		case errors.Is(err, channel.ErrOverflow):
			buf = make([]byte, n)
			continue
		case errors.Is(err, channel.ErrTimeout):
			logger.Debug("timeout")
			continue
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reading %s: %w", source.Name(), err)
		}

		if err := output.Frame(buf[:n]); err != nil {
			if isFrameError(err) {
				logger.Error("invalid frame", "size", n, "error", err)
				continue
			}
			return err
		}
	}
}

func isFrameError(err error) bool {
	var frameError *msg.FrameError
	return errors.As(err, &frameError) || errors.Is(err, dispatch.ErrSampleMismatch)
}

// replay prints a recording. Entries carrying raw frames go through
// the type's renderer (or sampler with --sample) when the recording's
// layout matches this build; all others print their stored samples.
func replay(path string, registry *dispatch.Registry, opts options, stdout io.Writer, logger *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}
	defer file.Close()

	reader, err := record.NewReader(file)
	if err != nil {
		return err
	}
	header := reader.Header()
	logger = logger.With("recording", path, "type", header.Type, "channel", header.Channel)

	useFrames := opts.format == "text" && !opts.sample
	if useFrames {
		if err := reader.Compatible(); err != nil {
			logger.Warn("printing stored samples", "error", err)
			useFrames = false
		} else if _, err := registry.Resolve(header.Type); err != nil {
			logger.Warn("printing stored samples", "error", err)
			useFrames = false
		}
	}

	var encoder *codec.Encoder
	if opts.format == "cbor" {
		encoder = codec.NewEncoder(stdout)
	}
	count := 0
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading entry %d: %w", count, err)
		}
		count++
		switch {
		case encoder != nil:
			err = encoder.Encode(entry)
		case useFrames && entry.Frame != nil:
			err = registry.Dump(stdout, header.Type, entry.Frame)
		default:
			err = writeSampleLine(stdout, entry.Seq, entry.Labels, entry.Values)
		}
		if err != nil {
			if isFrameError(err) {
				logger.Error("invalid frame", "seq", entry.Seq, "error", err)
				continue
			}
			return err
		}
	}
	logger.Debug("replay finished", "entries", count)
	return nil
}
