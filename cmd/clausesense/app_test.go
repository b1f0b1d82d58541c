// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/clausesense/clausesense/cmd/clausesense/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.ClauseSenseConfig {
	cfg := config.DefaultConfig()
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.RateLimitPerMinute = 0
	cfg.Logging.Dir = ""
	cfg.History.Persist = false
	cfg.Observability.Tracing = false
	return cfg
}

func TestNewApp_InMemoryHistory(t *testing.T) {
	fb, srv := newFakeBackend(t)
	a, err := newApp(testConfig(srv.URL), appOptions{LogOutput: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, srv.URL, a.client.BaseURL())

	reply, err := a.controller.Send(context.Background(), "Can I sublet?")
	require.NoError(t, err)
	assert.Equal(t, "Answer to: Can I sublet?", reply.Text)
	assert.Len(t, fb.chatRequests(), 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(a.metrics.RequestsTotal.WithLabelValues("chat", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.metrics.SessionEventsTotal.WithLabelValues("send")))
}

func TestNewApp_PersistentHistorySurvivesRestart(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := testConfig(srv.URL)
	cfg.History.Persist = true
	cfg.History.Dir = filepath.Join(t.TempDir(), "history")

	first, err := newApp(cfg, appOptions{LogOutput: io.Discard})
	require.NoError(t, err)
	_, err = first.controller.Send(context.Background(), "What is force majeure?")
	require.NoError(t, err)
	entry, err := first.controller.NewChat()
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NoError(t, first.Close())

	second, err := newApp(cfg, appOptions{LogOutput: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	entries := second.store.List()
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, "What is force majeure?", entries[0].Title)

	require.NoError(t, second.controller.Restore(entry.ID))
	assert.Equal(t, entry.Messages, second.controller.Messages())
}

func TestNewApp_InvalidLogLevel(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Logging.Level = "chatty"

	_, err := newApp(cfg, appOptions{LogOutput: io.Discard})
	assert.Error(t, err)
}

func TestNewApp_TracingToFile(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := testConfig(srv.URL)
	cfg.Observability.Tracing = true
	cfg.Observability.TraceFile = filepath.Join(t.TempDir(), "traces.jsonl")

	a, err := newApp(cfg, appOptions{LogOutput: io.Discard})
	require.NoError(t, err)
	_, err = a.controller.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.FileExists(t, cfg.Observability.TraceFile)
}
