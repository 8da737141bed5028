// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package record writes and reads recordings of sampled message
// traffic.
//
// A recording file starts with an 8-byte magic, followed by a CBOR
// [Header] naming the message type and the layout fingerprint of the
// recording host, followed by CBOR chunks. Each chunk carries a
// compression tag, the uncompressed length, and a payload that
// decompresses to a CBOR sequence of [Entry] records: the header
// fields of one frame, its sample values, and optionally the raw
// frame.
//
// Labels are written on the first entry and again only when they
// change; [Reader] carries them forward so every entry it returns has
// labels.
//
// Raw frames are in the recording host's native layout. [Reader.Compatible]
// compares the recorded fingerprint with the local one before a
// caller replays frames through a renderer.
package record
