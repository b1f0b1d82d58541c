// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"Warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_WritesServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})
	defer logger.Close()

	logger.Slog().Info("hidden")
	logger.Slog().Warn("shown", "session_id", "s-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked through warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "session_id=s-1") {
		t.Errorf("missing warn record: %s", out)
	}
	if !strings.Contains(out, "service="+DefaultService) {
		t.Errorf("missing service attribute: %s", out)
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf, Service: "test"})
	logger.Slog().Info("hello", "request_id", "r-1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("stderr output is not JSON: %v (%s)", err, buf.String())
	}
	if rec["service"] != "test" || rec["request_id"] != "r-1" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_QuietWithoutFileDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})
	logger.Slog().Error("nowhere")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote to output: %s", buf.String())
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	var buf bytes.Buffer

	logger := New(Config{LogDir: dir, Output: &buf, Service: "cli"})
	if logger.FilePath() == "" {
		t.Fatal("file logging was not enabled")
	}
	if !strings.HasPrefix(filepath.Base(logger.FilePath()), "cli_") {
		t.Errorf("unexpected file name %s", logger.FilePath())
	}

	logger.Slog().Info("to both", "k", "v")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	data, err := os.ReadFile(logger.FilePath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to both"`) {
		t.Errorf("file missing JSON record: %s", data)
	}
	if !strings.Contains(buf.String(), "to both") {
		t.Errorf("stderr missing record: %s", buf.String())
	}
}

func TestNew_UnwritableLogDirFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	if logger.FilePath() != "" {
		t.Errorf("expected no log file, got %s", logger.FilePath())
	}
	logger.Slog().Info("still works")
	if !strings.Contains(buf.String(), "still works") {
		t.Error("stderr handler missing after file failure")
	}
}

func TestLogger_Install(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	New(Config{Output: &buf}).Install()
	slog.Info("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("slog.Default not replaced: %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})
	logger.With("session_id", "abc").Info("scoped")
	if !strings.Contains(buf.String(), "session_id=abc") {
		t.Errorf("child attributes missing: %s", buf.String())
	}
}

// =============================================================================
// multiHandler Tests
// =============================================================================

func TestMultiHandler_FanOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug enabled by first handler")
	}

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("x", "1")}).WithGroup("g"))
	logger.Info("info only", "k", "v")
	logger.Error("both")

	if !strings.Contains(a.String(), "info only") || !strings.Contains(a.String(), "both") {
		t.Errorf("first handler output: %s", a.String())
	}
	if strings.Contains(b.String(), "info only") || !strings.Contains(b.String(), "both") {
		t.Errorf("second handler output: %s", b.String())
	}
	if !strings.Contains(a.String(), "x=1") || !strings.Contains(a.String(), "g.k=v") {
		t.Errorf("attrs/group not propagated: %s", a.String())
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/.clausesense/logs"); got != filepath.Join(home, ".clausesense/logs") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/var/log"); got != "/var/log" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("~user form must be left alone: %q", got)
	}
}
