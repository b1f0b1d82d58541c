// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// Wire Types
// =============================================================================

// ChatRequest is the JSON body of POST /api/v1/chat.
type ChatRequest struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

// ChatResponse is the success body of POST /api/v1/chat.
//
// RouterDecision is the backend's routing/model label ("Multi-Doc Analysis").
// Some deployments report a plain Model field instead.
type ChatResponse struct {
	Response       string   `json:"response"`
	Sources        []string `json:"sources,omitempty"`
	RouterDecision string   `json:"router_decision,omitempty"`
	Model          string   `json:"model,omitempty"`
}

// Label returns the routing label, falling back to the model name.
func (r *ChatResponse) Label() string {
	if r.RouterDecision != "" {
		return r.RouterDecision
	}
	return r.Model
}

// UploadResponse is the body of POST /api/v1/upload.
//
// The backend answers 200 both on success ({"status":"success","doc_id":...})
// and on parse/validation failures ({"status":"error","message":...}).
type UploadResponse struct {
	Status     string `json:"status,omitempty"`
	DocID      string `json:"doc_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ID returns the document identifier from whichever field carried it.
func (r *UploadResponse) ID() string {
	if r.DocID != "" {
		return r.DocID
	}
	return r.DocumentID
}

// Failed reports whether the body describes a failed upload.
func (r *UploadResponse) Failed() bool {
	return strings.EqualFold(r.Status, "error") || r.ID() == ""
}

// =============================================================================
// APIError
// =============================================================================

// APIError is a failure reported by the backend.
//
// # Description
//
// Detail carries the backend's human-readable explanation when one was
// provided (FastAPI "detail", or "message" on 200-with-error upload bodies).
// It is empty when the backend gave nothing usable, in which case callers
// fall back to a generic message.
type APIError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: backend error (%d): %s", e.Endpoint, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: backend error (%d): %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
}

var _ error = (*APIError)(nil)

// errorBody is the FastAPI error envelope. Detail is either a string or a
// list of validation issues.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

// parseErrorDetail extracts a human-readable detail from an error body.
// Unparseable bodies yield a trimmed, length-capped copy of the raw text.
func parseErrorDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return truncate(strings.TrimSpace(string(body)), maxDetailLength)
	}

	if len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil {
			return s
		}
		var issues []validationIssue
		if err := json.Unmarshal(eb.Detail, &issues); err == nil {
			msgs := make([]string, 0, len(issues))
			for _, is := range issues {
				if is.Msg != "" {
					msgs = append(msgs, is.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return eb.Message
}

const maxDetailLength = 512

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
