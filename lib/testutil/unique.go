// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-P-N" where P is the
// test process id and N increases monotonically. Channel names are
// global to a host, so tests use this to keep concurrently running
// test binaries off each other's rings.
//
//	name := testutil.UniqueID("state") // "state-4121-1", "state-4121-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, os.Getpid(), uniqueCounter.Add(1))
}
