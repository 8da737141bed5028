// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
)

// RingDir creates a temporary directory for channel ring files.
//
// Rings are normally mapped from /dev/shm; when it exists and is
// writable the directory is created there so tests exercise the same
// tmpfs-backed mappings as production. Otherwise it falls back to
// t.TempDir().
//
// The directory is removed when the test completes.
func RingDir(t *testing.T) string {
	t.Helper()

	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		dir, err := os.MkdirTemp("/dev/shm", "sns-test-")
		if err == nil {
			t.Cleanup(func() { os.RemoveAll(dir) })
			return dir
		}
	}
	return t.TempDir()
}
