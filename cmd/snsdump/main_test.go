// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"

	"github.com/bureau-foundation/sns/lib/channel"
	"github.com/bureau-foundation/sns/lib/clock"
	"github.com/bureau-foundation/sns/lib/codec"
	"github.com/bureau-foundation/sns/lib/config"
	"github.com/bureau-foundation/sns/lib/dispatch"
	"github.com/bureau-foundation/sns/lib/msg"
	"github.com/bureau-foundation/sns/lib/msgdump"
	"github.com/bureau-foundation/sns/lib/record"
	"github.com/bureau-foundation/sns/lib/testutil"
)

func testRegistry(t *testing.T) *dispatch.Registry {
	t.Helper()
	registry := newRegistry(config.Default(), msgdump.Options{Profile: termenv.Ascii, Precision: 2}, nil)
	t.Cleanup(registry.Close)
	return registry
}

func testProducer(t *testing.T) *msg.Producer {
	t.Helper()
	producer, err := msg.NewProducer("test", msg.ProducerOptions{
		Clock: clock.Fake(time.Unix(1_700_000_000, 0)),
		Host:  "bench",
		PID:   42,
	})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	return producer
}

func vectorFrame(t *testing.T, producer *msg.Producer, values ...float64) []byte {
	t.Helper()
	vector, err := msg.NewVector(msg.Heap, producer, len(values))
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	vector.CopyFrom(values)
	return vector.Bytes()
}

// captureSink hands each frame's rendering to a channel.
type captureSink struct {
	inner  sink
	output *bytes.Buffer
	frames chan string
}

func (s *captureSink) Frame(frame []byte) error {
	s.output.Reset()
	err := s.inner.Frame(frame)
	if err == nil {
		s.frames <- s.output.String()
	}
	return err
}

func (s *captureSink) Close() error { return s.inner.Close() }

func TestDumpRendersFrames(t *testing.T) {
	publisher, err := channel.NewMemory(testutil.UniqueID("dump"), channel.MemoryOptions{Slots: 8, SlotSize: 256})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer publisher.Close()
	source := publisher.Subscribe()
	defer source.Close()

	producer := testProducer(t)
	if err := publisher.Put(vectorFrame(t, producer, 1, 2)); err != nil {
		t.Fatal(err)
	}
	// A truncated frame is skipped with an error log.
	bad := vectorFrame(t, producer, 3, 4)
	if err := publisher.Put(bad[:len(bad)-8]); err != nil {
		t.Fatal(err)
	}
	if err := publisher.Put(vectorFrame(t, producer, 5)); err != nil {
		t.Fatal(err)
	}

	var rendered bytes.Buffer
	capture := &captureSink{
		inner:  &textSink{registry: testRegistry(t), typeName: "vector", output: &rendered},
		output: &rendered,
		frames: make(chan string, 4),
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dump(ctx, source, capture, 50*time.Millisecond, logger) }()

	first := testutil.RequireReceive(t, capture.frames, 5*time.Second, "first frame")
	if !strings.Contains(first, "[vector]") || !strings.Contains(first, "1.00") {
		t.Errorf("first frame rendered as %q", first)
	}
	second := testutil.RequireReceive(t, capture.frames, 5*time.Second, "second frame")
	if !strings.Contains(second, "5.00") {
		t.Errorf("second frame rendered as %q", second)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "dump return"); err != nil {
		t.Errorf("dump = %v, want nil on cancel", err)
	}
	if !strings.Contains(logs.String(), "invalid frame") {
		t.Errorf("expected invalid frame log, got %q", logs.String())
	}
}

func TestDumpReportsTimeouts(t *testing.T) {
	publisher, err := channel.NewMemory(testutil.UniqueID("quiet"), channel.MemoryOptions{Slots: 2, SlotSize: 128})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer publisher.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = dump(ctx, publisher, &textSink{registry: testRegistry(t), typeName: "vector", output: io.Discard}, 10*time.Millisecond, logger)
	if err != nil {
		t.Errorf("dump = %v, want nil", err)
	}
	if !strings.Contains(logs.String(), "timeout") {
		t.Errorf("expected timeout debug log, got %q", logs.String())
	}
}

func TestSampleSink(t *testing.T) {
	var output bytes.Buffer
	s := &sampleSink{registry: testRegistry(t), typeName: "vector", output: &output}
	if err := s.Frame(vectorFrame(t, testProducer(t), 0.5, -2)); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got, want := output.String(), "1 x[0]=0.5 x[1]=-2\n"; got != want {
		t.Errorf("sample line = %q, want %q", got, want)
	}
}

func TestCBORSink(t *testing.T) {
	var output bytes.Buffer
	s := &cborSink{registry: testRegistry(t), typeName: "vector", frames: true, encoder: codec.NewEncoder(&output)}
	frame := vectorFrame(t, testProducer(t), 7)
	if err := s.Frame(frame); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	var entry record.Entry
	if err := codec.NewDecoder(&output).Decode(&entry); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if entry.Seq != 1 || entry.Host != "bench" || entry.PID != 42 {
		t.Errorf("entry metadata = %+v", entry)
	}
	if len(entry.Values) != 1 || entry.Values[0] != 7 || entry.Labels[0] != "x[0]" {
		t.Errorf("entry sample = %v %v, want [7] [x[0]]", entry.Values, entry.Labels)
	}
	if !bytes.Equal(entry.Frame, frame) {
		t.Error("entry frame differs from published frame")
	}
}

func TestRecordAndReplay(t *testing.T) {
	registry := testRegistry(t)
	path := filepath.Join(t.TempDir(), "vector.snsrec")
	opts := options{format: "text", recordPath: path, compression: "lz4", frames: true}

	var live bytes.Buffer
	output, err := newSink(registry, "vector", "arm", opts, &live)
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	producer := testProducer(t)
	for _, value := range []float64{1, 2, 3} {
		if err := output.Frame(vectorFrame(t, producer, value)); err != nil {
			t.Fatalf("Frame: %v", err)
		}
	}
	if err := output.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if strings.Count(live.String(), "[vector]") != 3 {
		t.Errorf("live output = %q, want 3 rendered frames", live.String())
	}

	logger := slog.New(slog.DiscardHandler)

	var rendered bytes.Buffer
	if err := replay(path, registry, options{format: "text"}, &rendered, logger); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rendered.String() != live.String() {
		t.Errorf("replayed text differs from live output:\n%s\nvs\n%s", rendered.String(), live.String())
	}

	var samples bytes.Buffer
	if err := replay(path, registry, options{format: "text", sample: true}, &samples, logger); err != nil {
		t.Fatalf("replay --sample: %v", err)
	}
	if got, want := samples.String(), "1 x[0]=1\n2 x[0]=2\n3 x[0]=3\n"; got != want {
		t.Errorf("replayed samples = %q, want %q", got, want)
	}
}

func TestReplayRejectsNonRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	if err := os.WriteFile(path, []byte("not a recording"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := replay(path, testRegistry(t), options{format: "text"}, io.Discard, slog.New(slog.DiscardHandler)); err == nil {
		t.Error("replay of junk succeeded")
	}
}
