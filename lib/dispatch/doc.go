// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch lets generic tools render and sample message types
// they were not compiled against.
//
// A [Registry] maps a type name to an [Entry]: a renderer that writes
// a human-readable form of a frame and a sampler that extracts the
// frame's observable numbers with a label for each. Entries come from
// [Loader]s tried in order, normally a [Static] table of compiled-in
// types followed by a [PluginLoader] that opens
// <dir>/libsns_msg_<type>.so.
//
// Each type name is resolved at most once per Registry. Concurrent
// first callers share a single load attempt and all observe its
// result; later lookups do not take a lock. A failed resolution is
// cached as well: there is no generic fallback rendering, and callers
// treat [ErrUnresolved] as fatal.
//
// The registry never looks inside a frame. Size validation and field
// interpretation belong to the entry.
package dispatch
