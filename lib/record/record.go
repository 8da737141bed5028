// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/bureau-foundation/sns/lib/codec"
	"github.com/bureau-foundation/sns/lib/dispatch"
	"github.com/bureau-foundation/sns/lib/msg"
)

// Magic starts every recording.
var Magic = [8]byte{'S', 'N', 'S', 'R', 'E', 'C', 0, 1}

// Version is the recording format version written by this package.
const Version = 1

// DefaultChunkSize is the uncompressed payload size at which a Writer
// seals a chunk.
const DefaultChunkSize = 64 << 10

// maxChunkSize bounds the uncompressed size a Reader will allocate
// for one chunk.
const maxChunkSize = 64 << 20

var (
	// ErrNotRecording reports input that does not start with Magic.
	ErrNotRecording = errors.New("record: not a recording")

	// ErrLayoutMismatch reports a recording whose frames were laid out
	// differently from this build's.
	ErrLayoutMismatch = errors.New("record: layout fingerprint mismatch")
)

// Header describes a recording.
type Header struct {
	Version int       `cbor:"version"`
	Type    string    `cbor:"type"`
	Channel string    `cbor:"channel,omitempty"`
	Layout  []byte    `cbor:"layout,omitempty"`
	Created time.Time `cbor:"created"`
}

// Entry is one recorded frame.
type Entry struct {
	Seq      uint64        `cbor:"seq"`
	Sec      int64         `cbor:"sec"`
	Nsec     uint32        `cbor:"nsec"`
	Validity time.Duration `cbor:"validity"`
	PID      int64         `cbor:"pid"`
	Host     string        `cbor:"host"`
	Ident    string        `cbor:"ident"`
	Values   []float64     `cbor:"values"`
	Labels   []string      `cbor:"labels"`
	Frame    []byte        `cbor:"frame,omitempty"`
}

// Time returns the frame's creation time.
func (e *Entry) Time() time.Time { return time.Unix(e.Sec, int64(e.Nsec)) }

// NewEntry builds the entry for frame from its header and sample,
// keeping the raw frame when withFrame is set.
func NewEntry(frame []byte, sample dispatch.Sample, withFrame bool) (Entry, error) {
	header, err := msg.ReadHeader(frame)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Seq:      header.Seq,
		Sec:      header.Sec,
		Nsec:     header.Nsec,
		Validity: header.Validity,
		PID:      header.PID,
		Host:     header.Host,
		Ident:    header.Ident,
		Values:   sample.Values,
		Labels:   sample.Labels,
	}
	if withFrame {
		entry.Frame = frame
	}
	return entry, nil
}

// chunk is the on-disk unit of compression.
type chunk struct {
	Compression Compression `cbor:"c"`
	Size        int         `cbor:"n"`
	Entries     int         `cbor:"e"`
	Data        []byte      `cbor:"d"`
}

// Options configures a Writer.
type Options struct {
	Compression Compression

	// ChunkSize is the uncompressed bytes buffered before a chunk is
	// written. Default: DefaultChunkSize.
	ChunkSize int

	// Frames stores each raw frame alongside its sample so the
	// recording can be replayed through a renderer.
	Frames bool
}

// Writer appends entries to a recording.
type Writer struct {
	output     io.Writer
	encoder    *codec.Encoder
	options    Options
	pending    bytes.Buffer
	pendingN   int
	lastLabels []string
}

// NewWriter writes the magic and header to w and returns a writer for
// the entries. If header.Layout is empty and header.Type is a
// built-in type, the local fingerprint is filled in.
func NewWriter(w io.Writer, header Header, options Options) (*Writer, error) {
	if options.ChunkSize <= 0 {
		options.ChunkSize = DefaultChunkSize
	}
	if options.ChunkSize > maxChunkSize {
		return nil, fmt.Errorf("record: chunk size %d exceeds %d", options.ChunkSize, maxChunkSize)
	}
	if options.Compression > CompressionZstd {
		return nil, fmt.Errorf("record: unsupported compression %s", options.Compression)
	}
	header.Version = Version
	if header.Layout == nil {
		if layout, ok := msg.LookupLayout(header.Type); ok {
			fingerprint := layout.Fingerprint()
			header.Layout = fingerprint[:]
		}
	}
	if _, err := w.Write(Magic[:]); err != nil {
		return nil, fmt.Errorf("writing recording magic: %w", err)
	}
	encoder := codec.NewEncoder(w)
	if err := encoder.Encode(header); err != nil {
		return nil, fmt.Errorf("writing recording header: %w", err)
	}
	return &Writer{output: w, encoder: encoder, options: options}, nil
}

// Write records one frame and its sample. The frame's header is read
// for the entry's metadata; the caller has already validated the
// frame through the type's sampler.
func (w *Writer) Write(frame []byte, sample dispatch.Sample) error {
	entry, err := NewEntry(frame, sample, w.options.Frames)
	if err != nil {
		return err
	}
	entry.Labels = nil
	// Unchanged labels are encoded as null; the reader carries the
	// previous ones forward.
	if w.lastLabels == nil || !slices.Equal(sample.Labels, w.lastLabels) {
		entry.Labels = slices.Clone(sample.Labels)
		if entry.Labels == nil {
			entry.Labels = []string{}
		}
		w.lastLabels = entry.Labels
	}
	data, err := codec.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry %d: %w", entry.Seq, err)
	}
	w.pending.Write(data)
	w.pendingN++
	if w.pending.Len() >= w.options.ChunkSize {
		return w.Flush()
	}
	return nil
}

// Flush writes buffered entries as a chunk.
func (w *Writer) Flush() error {
	if w.pendingN == 0 {
		return nil
	}
	payload := w.pending.Bytes()
	c := chunk{Compression: w.options.Compression, Size: len(payload), Entries: w.pendingN}
	compressed, err := compress(payload, w.options.Compression)
	switch {
	case errors.Is(err, errIncompressible):
		c.Compression = CompressionNone
		c.Data = payload
	case err != nil:
		return err
	default:
		c.Data = compressed
	}
	if err := w.encoder.Encode(c); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}
	w.pending.Reset()
	w.pendingN = 0
	return nil
}

// Close flushes buffered entries. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	return w.Flush()
}

// Reader reads a recording.
type Reader struct {
	header  Header
	decoder *codec.Decoder
	entries *codec.Decoder
	labels  []string
}

// NewReader reads and validates the magic and header.
func NewReader(r io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(r)
	var magic [8]byte
	if _, err := io.ReadFull(buffered, magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotRecording
		}
		return nil, fmt.Errorf("reading recording magic: %w", err)
	}
	if magic != Magic {
		return nil, ErrNotRecording
	}
	decoder := codec.NewDecoder(buffered)
	var header Header
	if err := decoder.Decode(&header); err != nil {
		return nil, fmt.Errorf("reading recording header: %w", err)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("record: unsupported version %d", header.Version)
	}
	return &Reader{header: header, decoder: decoder}, nil
}

// Header returns the recording header.
func (r *Reader) Header() Header { return r.header }

// Compatible reports whether the recorded frames match this build's
// layout for the recorded type. Types this build does not know are
// accepted; their renderer is responsible for validation.
func (r *Reader) Compatible() error {
	layout, ok := msg.LookupLayout(r.header.Type)
	if !ok || r.header.Layout == nil {
		return nil
	}
	local := layout.Fingerprint()
	if !bytes.Equal(local[:], r.header.Layout) {
		return fmt.Errorf("%w: %s recorded as %x, local layout %s",
			ErrLayoutMismatch, r.header.Type, r.header.Layout[:min(8, len(r.header.Layout))], local)
	}
	return nil
}

// Next returns the next entry, or io.EOF after the last one.
func (r *Reader) Next() (Entry, error) {
	for {
		if r.entries != nil {
			var entry Entry
			err := r.entries.Decode(&entry)
			if err == nil {
				if entry.Labels != nil {
					r.labels = entry.Labels
				} else {
					entry.Labels = r.labels
				}
				return entry, nil
			}
			if !errors.Is(err, io.EOF) {
				return Entry{}, fmt.Errorf("decoding entry: %w", err)
			}
			r.entries = nil
		}

		var c chunk
		if err := r.decoder.Decode(&c); err != nil {
			if errors.Is(err, io.EOF) {
				return Entry{}, io.EOF
			}
			return Entry{}, fmt.Errorf("reading chunk: %w", err)
		}
		if c.Size < 0 || c.Size > maxChunkSize {
			return Entry{}, fmt.Errorf("record: chunk claims %d bytes", c.Size)
		}
		payload, err := decompress(c.Data, c.Compression, c.Size)
		if err != nil {
			return Entry{}, err
		}
		r.entries = codec.NewDecoder(bytes.NewReader(payload))
	}
}
