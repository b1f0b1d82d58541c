// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package backend is the HTTP transport for the ClauseSense analysis API.
//
// The API exposes two endpoints under {base}/api/v1:
//
//	POST /upload   multipart field "file"      -> {"status","doc_id"}
//	POST /chat     {"document_id","message"}   -> {"response","sources","router_decision"}
//
// Client is deliberately thin: it speaks the wire format, maps failures to
// *APIError and records a span per call. Cancellation bookkeeping lives one
// layer up in pkg/lifecycle.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// APIPrefix is the versioned path prefix of every endpoint.
	APIPrefix = "/api/v1"

	// DefaultTimeout bounds a single HTTP exchange. Document analysis on a
	// cold model can take minutes.
	DefaultTimeout = 5 * time.Minute

	maxResponseBytes = 4 * 1024 * 1024
)

var backendTracer = otel.Tracer("clausesense.backend")

// =============================================================================
// Client
// =============================================================================

// Config configures a Client.
type Config struct {
	// BaseURL of the backend without the /api/v1 prefix (default DefaultBaseURL).
	BaseURL string

	// Timeout per request. Zero uses DefaultTimeout; negative disables it.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests, custom transports).
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to the upload and chat endpoints.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client from config.
func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		switch {
		case timeout == 0:
			timeout = DefaultTimeout
		case timeout < 0:
			timeout = 0
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends a document to POST /api/v1/upload.
//
// # Outputs
//
//   - *UploadResponse: body with a non-empty ID() on success.
//   - error: *APIError for non-2xx answers and for 200 bodies with
//     status "error"; a wrapped transport error otherwise (including
//     context cancellation).
func (c *Client) Upload(ctx context.Context, file datatypes.UploadFile) (*UploadResponse, error) {
	requestID := uuid.NewString()
	ctx, span := backendTracer.Start(ctx, "backend.Upload")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("upload.filename", file.Name),
		attribute.Int64("upload.bytes", file.Size()),
	)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	c.logger.Debug("uploading document",
		"request_id", requestID,
		"filename", file.Name,
		"bytes", file.Size(),
	)

	var out UploadResponse
	status, err := c.post(ctx, requestID, "upload", mw.FormDataContentType(), &body, &out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return nil, err
	}

	if out.Failed() {
		apiErr := &APIError{Endpoint: "upload", StatusCode: status, Detail: out.Message}
		c.logger.Warn("backend rejected upload",
			"request_id", requestID,
			"filename", file.Name,
			"detail", out.Message,
		)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, "upload rejected")
		return nil, apiErr
	}

	span.SetAttributes(attribute.String("document.id", out.ID()))
	return &out, nil
}

// Chat sends a message to POST /api/v1/chat.
//
// req.DocumentID is a single id, several ids joined by
// datatypes.ScopeSeparator, or datatypes.GeneralScope.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	requestID := uuid.NewString()
	ctx, span := backendTracer.Start(ctx, "backend.Chat")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("chat.scope", req.DocumentID),
		attribute.Int("chat.message_length", len(req.Message)),
	)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("sending chat message",
		"request_id", requestID,
		"scope", req.DocumentID,
		"message_length", len(req.Message),
	)

	var out ChatResponse
	if _, err := c.post(ctx, requestID, "chat", "application/json", bytes.NewReader(payload), &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("chat.router_decision", out.Label()),
		attribute.Int("chat.sources_count", len(out.Sources)),
	)
	return &out, nil
}

// post performs the request and decodes a 2xx JSON body into out.
func (c *Client) post(ctx context.Context, requestID, endpoint, contentType string, body io.Reader, out any) (int, error) {
	targetURL := c.baseURL + APIPrefix + "/" + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, body)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("backend HTTP request failed",
			"request_id", requestID,
			"url", targetURL,
			"error", err,
		)
		return 0, fmt.Errorf("http post %s: %w", endpoint, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}(resp.Body)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := parseErrorDetail(respBody)
		c.logger.Error("backend returned error",
			"request_id", requestID,
			"endpoint", endpoint,
			"status_code", resp.StatusCode,
			"detail", detail,
		)
		return resp.StatusCode, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Detail: detail}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.Error("failed to decode backend response",
			"request_id", requestID,
			"endpoint", endpoint,
			"error", err,
		)
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	c.logger.Debug("backend request completed",
		"request_id", requestID,
		"endpoint", endpoint,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp.StatusCode, nil
}
