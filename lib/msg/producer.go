// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/sns/lib/clock"
)

// DefaultValidity is the validity window Fill stamps when the
// producer was not given one.
const DefaultValidity = time.Second

// ProducerOptions configures a Producer. Zero fields take defaults.
type ProducerOptions struct {
	// Clock supplies creation times. Default: clock.Real().
	Clock clock.Clock

	// Validity is stamped into every header by Fill. Default:
	// DefaultValidity.
	Validity time.Duration

	// Host overrides the host name. Default: os.Hostname().
	Host string

	// PID overrides the process id. Default: os.Getpid().
	PID int64
}

// Producer is a producing context: it owns the sequence counter and
// the sender identity stamped into headers. A Producer is safe for
// concurrent use; concurrent Fill calls receive distinct sequence
// numbers.
type Producer struct {
	clock    clock.Clock
	validity time.Duration
	host     string
	ident    string
	pid      int64
	sequence atomic.Uint64
}

// NewProducer returns a Producer stamping ident as the sender
// identity.
func NewProducer(ident string, options ProducerOptions) (*Producer, error) {
	if options.Validity < 0 {
		return nil, fmt.Errorf("msg: negative validity %v", options.Validity)
	}
	producer := &Producer{
		clock:    options.Clock,
		validity: options.Validity,
		host:     options.Host,
		ident:    truncate(ident, IdentLen),
		pid:      options.PID,
	}
	if producer.clock == nil {
		producer.clock = clock.Real()
	}
	if producer.validity == 0 {
		producer.validity = DefaultValidity
	}
	if producer.host == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("msg: resolving host name: %w", err)
		}
		producer.host = host
	}
	producer.host = truncate(producer.host, HostLen)
	if producer.pid == 0 {
		producer.pid = int64(os.Getpid())
	}
	return producer, nil
}

// Fill stamps h: creation time from the producer's clock, the
// producer's default validity, the next sequence number, and the
// sender pid, host and identity. Each call advances the sequence.
func (p *Producer) Fill(h *Header) {
	h.SetTime(p.clock.Now(), p.validity)
	h.Seq = p.sequence.Add(1)
	h.PID = p.pid
	h.Host = p.host
	h.Ident = p.ident
}

// Now returns the producer clock's current time, for callers that
// re-stamp a header with SetTime.
func (p *Producer) Now() time.Time {
	return p.clock.Now()
}

// Ident returns the producer's sender identity as stamped.
func (p *Producer) Ident() string { return p.ident }

func truncate(value string, width int) string {
	if len(value) > width {
		return value[:width]
	}
	return value
}
