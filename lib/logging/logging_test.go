// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNew_AutoUsesJSONForBuffers(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, slog.LevelInfo, FormatAuto)
	logger.Info("frame dropped", "channel", "ref")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buffer.String())
	}
	if record["msg"] != "frame dropped" {
		t.Errorf("msg = %v, want frame dropped", record["msg"])
	}
	if record["channel"] != "ref" {
		t.Errorf("channel = %v, want ref", record["channel"])
	}
}

func TestNew_Text(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, slog.LevelInfo, FormatText)
	logger.Info("halting", "joints", 3)

	output := buffer.String()
	if !strings.Contains(output, "msg=halting") || !strings.Contains(output, "joints=3") {
		t.Errorf("unexpected text output %q", output)
	}
}

func TestNew_Level(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, slog.LevelWarn, FormatJSON)
	logger.Info("ignored")
	if buffer.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buffer.String())
	}
	logger.Warn("kept")
	if buffer.Len() == 0 {
		t.Error("warn not logged at warn level")
	}
}
