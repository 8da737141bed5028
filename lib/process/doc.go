// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for sns tools. These
// functions centralize the raw I/O that happens before the structured
// logger exists or after main() has given up:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
//   - Turning SIGINT and SIGTERM into context cancellation, so tools
//     can run shutdown actions (a final halt command) before exiting.
package process
