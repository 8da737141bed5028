// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "false", "2026-10-01T00:00:00Z"
	if got, want := Info(), Version+" (abc1234, 2026-10-01T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestFprint(t *testing.T) {
	var buffer bytes.Buffer
	Fprint(&buffer, "snsdump")
	output := buffer.String()
	if !strings.HasPrefix(output, "snsdump "+Version) {
		t.Errorf("Fprint output = %q, want snsdump prefix", output)
	}
	if !strings.Contains(output, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Fprint output = %q, want platform", output)
	}
}
