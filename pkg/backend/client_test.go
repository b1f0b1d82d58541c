// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/"})
}

// =============================================================================
// Upload
// =============================================================================

func TestClient_Upload_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/upload", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "nda.pdf", hdr.Filename)
		assert.Equal(t, "contract body", string(content))

		_, _ = w.Write([]byte(`{"status":"success","doc_id":"doc-123"}`))
	})

	resp, err := client.Upload(context.Background(), datatypes.UploadFile{Name: "nda.pdf", Content: []byte("contract body")})
	require.NoError(t, err)
	assert.Equal(t, "doc-123", resp.ID())
}

func TestClient_Upload_DocumentIDField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"document_id":"doc-9"}`))
	})

	resp, err := client.Upload(context.Background(), datatypes.UploadFile{Name: "a.txt", Content: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "doc-9", resp.ID())
}

func TestClient_Upload_StatusErrorWith200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"File appears empty or is an image-based PDF."}`))
	})

	_, err := client.Upload(context.Background(), datatypes.UploadFile{Name: "scan.pdf", Content: []byte("x")})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "File appears empty or is an image-based PDF.", apiErr.Detail)
}

func TestClient_Upload_Non2xxDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Invalid file type. Allowed: .pdf, .docx, .txt"}`))
	})

	_, err := client.Upload(context.Background(), datatypes.UploadFile{Name: "a.txt", Content: []byte("x")})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Invalid file type. Allowed: .pdf, .docx, .txt", apiErr.Detail)
	assert.Contains(t, apiErr.Error(), "Invalid file type")
}

// =============================================================================
// Chat
// =============================================================================

func TestClient_Chat_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc-1,doc-2", req.DocumentID)
		assert.Equal(t, "Compare the termination clauses", req.Message)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":        "Answer: Both allow 30 days notice.",
			"router_decision": "Multi-Doc Analysis",
			"sources":         []string{"2 Documents"},
		})
	})

	resp, err := client.Chat(context.Background(), ChatRequest{DocumentID: "doc-1,doc-2", Message: "Compare the termination clauses"})
	require.NoError(t, err)
	assert.Equal(t, "Answer: Both allow 30 days notice.", resp.Response)
	assert.Equal(t, "Multi-Doc Analysis", resp.Label())
	assert.Equal(t, []string{"2 Documents"}, resp.Sources)
}

func TestClient_Chat_ModelLabelFallback(t *testing.T) {
	resp := &ChatResponse{Model: "llama-3.3-70b"}
	assert.Equal(t, "llama-3.3-70b", resp.Label())
}

func TestClient_Chat_ValidationDetailList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"field required"},{"msg":"value is not a valid string"}]}`))
	})

	_, err := client.Chat(context.Background(), ChatRequest{DocumentID: datatypes.GeneralScope})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "field required; value is not a valid string", apiErr.Detail)
}

func TestClient_Chat_NonJSONErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	})

	_, err := client.Chat(context.Background(), ChatRequest{DocumentID: datatypes.GeneralScope, Message: "hi"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream unavailable", apiErr.Detail)
}

func TestClient_Chat_EmptyErrorBodyUsesStatusText(t *testing.T) {
	err := &APIError{Endpoint: "chat", StatusCode: http.StatusServiceUnavailable}
	assert.Contains(t, err.Error(), "Service Unavailable")
}

func TestClient_Chat_MalformedSuccessBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.Chat(context.Background(), ChatRequest{DocumentID: datatypes.GeneralScope, Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode chat response")
}

func TestClient_Chat_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Chat(ctx, ChatRequest{DocumentID: datatypes.GeneralScope, Message: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.http.Timeout)

	c = NewClient(Config{BaseURL: "https://api.example.com//", Timeout: -1})
	assert.Equal(t, "https://api.example.com", c.BaseURL())
	assert.Zero(t, c.http.Timeout)
}
