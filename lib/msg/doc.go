// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package msg defines the binary message formats exchanged over sns
// channels and the framing rules every producer and consumer shares.
//
// Every message starts with a [Header] (creation time, validity
// duration, sender pid, per-producer sequence number, sender host and
// logical identity), continues with a few type-specific fixed fields,
// then a count, then exactly count fixed-size elements. The byte size
// of a message is always
//
//	prefix + count*elementSize
//
// where prefix is computed once per type by [NewVarType] from the
// type's fixed fields. Sizes are never re-derived ad hoc.
//
// # Wire format
//
// Fields are laid out with C natural alignment for an LP64 target and
// written in the producing platform's native byte order. No byte-order
// or padding normalization is performed: producers and consumers must
// run on the same architecture. [Layout.Fingerprint] identifies a
// layout so that recordings made elsewhere can be rejected instead of
// misread.
//
// # Frames and views
//
// A message is a []byte sized exactly to [VarType.SizeN] of its count,
// wrapped in a typed view such as [MotorRef] or [Vector]. Views never
// own memory; the allocator that produced the bytes does. Producers
// build messages with [VarType.New] (heap, caller-owned region, or
// goroutine-local region via the [Allocator] interface). Consumers
// must obtain views through [VarType.View], which rejects frames too
// short for their declared count before any element is read.
package msg
