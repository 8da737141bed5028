// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"bytes"
	"time"
)

// Fixed-width string fields in the header. Longer values are truncated;
// shorter values are NUL padded.
const (
	HostLen  = 16
	IdentLen = 16
)

// Header field offsets. The time block (sec, dur_nsec, nsec) is padded
// to 24 bytes; the header is 8-byte aligned.
const (
	offSec      = 0
	offValidity = 8
	offNsec     = 16
	offPID      = 24
	offSeq      = 32
	offHost     = 40
	offIdent    = offHost + HostLen

	// HeaderSize is the wire size of the header.
	HeaderSize = offIdent + IdentLen

	headerAlign = 8
)

// Header is the decoded form of the header carried by every message.
type Header struct {
	// Sec and Nsec are the creation time, in seconds and nanoseconds
	// since the Unix epoch.
	Sec  int64
	Nsec uint32

	// Validity is how long after creation the message stays fresh.
	// Consumers treat the message as stale from Sec/Nsec + Validity on.
	Validity time.Duration

	// PID is the process id of the sender.
	PID int64

	// Seq is the sender's sequence number. It strictly increases across
	// messages stamped by the same Producer.
	Seq uint64

	// Host is the sender's host name, at most HostLen bytes.
	Host string

	// Ident is the sender's logical identity, at most IdentLen bytes.
	Ident string
}

// Time returns the creation time.
func (h *Header) Time() time.Time {
	return time.Unix(h.Sec, int64(h.Nsec))
}

// SetTime sets the creation time to now and the validity window to
// validity. Producers call it to override the defaults applied by
// Fill, for example to give a halt command exactly one second of
// validity.
func (h *Header) SetTime(now time.Time, validity time.Duration) {
	h.Sec = now.Unix()
	h.Nsec = uint32(now.Nanosecond())
	h.Validity = validity
}

// Expiry returns the instant from which the message is stale.
func (h *Header) Expiry() time.Time {
	return h.Time().Add(h.Validity)
}

// IsExpired reports whether now is at or past the message's expiry.
// This is the only staleness test on the bus: it is evaluated by the
// consumer, never by the producer or the transport.
func (h *Header) IsExpired(now time.Time) bool {
	return !now.Before(h.Expiry())
}

// ReadHeader decodes the header at the start of any message frame.
// Every message type begins with a header, so generic tools can read
// it without knowing the type. Fails with ErrShortFrame when frame is
// shorter than HeaderSize.
func ReadHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderSize {
		return Header{}, &FrameError{Type: "header", FrameSize: len(frame), Want: HeaderSize, Err: ErrShortFrame}
	}
	return readHeader(frame), nil
}

// putHeader writes h into the first HeaderSize bytes of b.
func putHeader(b []byte, h *Header) {
	_ = b[HeaderSize-1]
	native.PutUint64(b[offSec:], uint64(h.Sec))
	native.PutUint64(b[offValidity:], uint64(h.Validity))
	native.PutUint32(b[offNsec:], h.Nsec)
	clear(b[offNsec+4 : offPID])
	native.PutUint64(b[offPID:], uint64(h.PID))
	native.PutUint64(b[offSeq:], h.Seq)
	putFixedString(b[offHost:offHost+HostLen], h.Host)
	putFixedString(b[offIdent:offIdent+IdentLen], h.Ident)
}

// readHeader decodes the first HeaderSize bytes of b.
func readHeader(b []byte) Header {
	_ = b[HeaderSize-1]
	return Header{
		Sec:      int64(native.Uint64(b[offSec:])),
		Validity: time.Duration(native.Uint64(b[offValidity:])),
		Nsec:     native.Uint32(b[offNsec:]),
		PID:      int64(native.Uint64(b[offPID:])),
		Seq:      native.Uint64(b[offSeq:]),
		Host:     fixedString(b[offHost : offHost+HostLen]),
		Ident:    fixedString(b[offIdent : offIdent+IdentLen]),
	}
}

func putFixedString(field []byte, value string) {
	written := copy(field, value)
	clear(field[written:])
}

// fixedString returns the field up to its first NUL. A field filled
// to its full width has no terminator.
func fixedString(field []byte) string {
	if end := bytes.IndexByte(field, 0); end >= 0 {
		field = field[:end]
	}
	return string(field)
}
