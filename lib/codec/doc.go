// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration shared by every sns
// tool that serializes decoded messages.
//
// Message frames themselves are never CBOR: they travel in the native
// binary layout described by package msg. CBOR is used one level up,
// for the structured records tools emit about frames: the
// machine-readable output of snsdump and the record stream inside a
// recording file. Keeping one encoder configuration here means a
// record written by one tool decodes identically in any other.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer and float encoding, no indefinite-length
// items. The same record always produces the same bytes, so two
// recordings of identical traffic compare equal.
//
// For buffer-oriented use:
//
//	data, err := codec.Marshal(record)
//	err = codec.Unmarshal(data, &record)
//
// For streams (recordings, piped dump output):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Record types carry `cbor` struct tags with short keys; they are
// never rendered as JSON.
package codec
