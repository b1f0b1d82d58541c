// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/clausesense/clausesense/pkg/backend"
	"github.com/clausesense/clausesense/pkg/history"
	"github.com/clausesense/clausesense/pkg/lifecycle"
	"github.com/clausesense/clausesense/pkg/session"
	"github.com/stretchr/testify/require"
)

// fakeBackend mimics the analysis service.
type fakeBackend struct {
	mu        sync.Mutex
	uploads   []string
	chats     []backend.ChatRequest
	chatReply func(w http.ResponseWriter, r *http.Request, req backend.ChatRequest)
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/upload", func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"missing file"}`))
			return
		}
		fb.mu.Lock()
		fb.uploads = append(fb.uploads, hdr.Filename)
		n := len(fb.uploads)
		fb.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "doc_id": fmt.Sprintf("doc-%d", n)})
	})
	mux.HandleFunc("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		fb.mu.Lock()
		fb.chats = append(fb.chats, req)
		reply := fb.chatReply
		fb.mu.Unlock()
		if reply != nil {
			reply(w, r, req)
			return
		}
		_ = json.NewEncoder(w).Encode(backend.ChatResponse{
			Response:       "Answer to: " + req.Message,
			Sources:        []string{"lease.txt"},
			RouterDecision: "Contract Analysis",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) setChatReply(fn func(w http.ResponseWriter, r *http.Request, req backend.ChatRequest)) {
	fb.mu.Lock()
	fb.chatReply = fn
	fb.mu.Unlock()
}

func (fb *fakeBackend) chatRequests() []backend.ChatRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]backend.ChatRequest(nil), fb.chats...)
}

// newTestController builds a controller against srv with an in-memory
// history.
func newTestController(t *testing.T, srv *httptest.Server) *session.Controller {
	t.Helper()
	client := backend.NewClient(backend.Config{BaseURL: srv.URL})
	manager := lifecycle.NewManager(client)
	ctrl := session.NewController(manager, history.NewStore(), session.Config{})
	require.NotNil(t, ctrl)
	return ctrl
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
