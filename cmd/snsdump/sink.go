// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/sns/lib/codec"
	"github.com/bureau-foundation/sns/lib/dispatch"
	"github.com/bureau-foundation/sns/lib/msg"
	"github.com/bureau-foundation/sns/lib/record"
)

// sink consumes the frames read from a channel.
type sink interface {
	Frame(frame []byte) error
	Close() error
}

// newSink builds the stdout sink for opts and, with --record, tees
// frames into a recording file.
func newSink(registry *dispatch.Registry, typeName, channelName string, opts options, stdout io.Writer) (sink, error) {
	var primary sink
	switch {
	case opts.format == "cbor":
		primary = &cborSink{registry: registry, typeName: typeName, frames: opts.frames, encoder: codec.NewEncoder(stdout)}
	case opts.sample:
		primary = &sampleSink{registry: registry, typeName: typeName, output: stdout}
	default:
		primary = &textSink{registry: registry, typeName: typeName, output: stdout}
	}
	if opts.recordPath == "" {
		return primary, nil
	}

	compression, err := record.ParseCompression(opts.compression)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(opts.recordPath)
	if err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}
	writer, err := record.NewWriter(file, record.Header{
		Type:    typeName,
		Channel: channelName,
		Created: time.Now().UTC(),
	}, record.Options{Compression: compression, Frames: opts.frames})
	if err != nil {
		file.Close()
		return nil, err
	}
	recorder := &recordSink{registry: registry, typeName: typeName, writer: writer, file: file}
	return teeSink{primary, recorder}, nil
}

type textSink struct {
	registry *dispatch.Registry
	typeName string
	output   io.Writer
}

func (s *textSink) Frame(frame []byte) error {
	return s.registry.Dump(s.output, s.typeName, frame)
}

func (s *textSink) Close() error { return nil }

type sampleSink struct {
	registry *dispatch.Registry
	typeName string
	output   io.Writer
}

func (s *sampleSink) Frame(frame []byte) error {
	sample, err := s.registry.PlotSample(s.typeName, frame)
	if err != nil {
		return err
	}
	header, err := msg.ReadHeader(frame)
	if err != nil {
		return err
	}
	return writeSampleLine(s.output, header.Seq, sample.Labels, sample.Values)
}

func (s *sampleSink) Close() error { return nil }

// writeSampleLine writes "seq label=value label=value ...".
func writeSampleLine(w io.Writer, seq uint64, labels []string, values []float64) error {
	var line strings.Builder
	line.WriteString(strconv.FormatUint(seq, 10))
	for i, value := range values {
		line.WriteByte(' ')
		if i < len(labels) {
			line.WriteString(labels[i])
			line.WriteByte('=')
		}
		line.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	}
	line.WriteByte('\n')
	_, err := io.WriteString(w, line.String())
	return err
}

// cborSink writes a CBOR sequence of record entries, one per frame,
// for consumption by other tools.
type cborSink struct {
	registry *dispatch.Registry
	typeName string
	frames   bool
	encoder  *codec.Encoder
}

func (s *cborSink) Frame(frame []byte) error {
	sample, err := s.registry.PlotSample(s.typeName, frame)
	if err != nil {
		return err
	}
	entry, err := record.NewEntry(frame, sample, s.frames)
	if err != nil {
		return err
	}
	return s.encoder.Encode(entry)
}

func (s *cborSink) Close() error { return nil }

type recordSink struct {
	registry *dispatch.Registry
	typeName string
	writer   *record.Writer
	file     *os.File
}

func (s *recordSink) Frame(frame []byte) error {
	sample, err := s.registry.PlotSample(s.typeName, frame)
	if err != nil {
		return err
	}
	return s.writer.Write(frame, sample)
}

func (s *recordSink) Close() error {
	err := s.writer.Close()
	if syncErr := s.file.Sync(); err == nil {
		err = syncErr
	}
	if closeErr := s.file.Close(); err == nil {
		err = closeErr
	}
	return err
}

// teeSink feeds every frame to each sink in turn.
type teeSink []sink

func (t teeSink) Frame(frame []byte) error {
	var errs []error
	for _, s := range t {
		if err := s.Frame(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeSink) Close() error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
