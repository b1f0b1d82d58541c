// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the data model shared by the ClauseSense client:
// chat messages, archived conversations, upload payloads and the scope
// constants understood by the analysis backend.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Scope Constants
// =============================================================================

const (
	// GeneralScope is the document_id sentinel for "no document attached".
	// The backend answers from general legal knowledge when it sees it.
	GeneralScope = "general_chat"

	// ScopeSeparator joins multiple document ids into one scope string.
	ScopeSeparator = ","
)

// =============================================================================
// Message
// =============================================================================

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation.
//
// # Description
//
// Messages are immutable once created. The ID is unique within a session and
// is what list diffing and placeholder removal key on, so it must never be
// reused. Transient marks placeholder messages ("Uploading contract.pdf...")
// that are removed once the operation they stand for finishes.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Sources    []string  `json:"sources,omitempty"`
	ModelLabel string    `json:"model_label,omitempty"`
	Transient  bool      `json:"transient,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh unique id.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewPlaceholder creates a transient assistant message.
func NewPlaceholder(text string) Message {
	m := NewMessage(RoleAssistant, text)
	m.Transient = true
	return m
}

// Clone returns a deep copy so callers can never alias a session's slices.
func (m Message) Clone() Message {
	if m.Sources != nil {
		m.Sources = append([]string(nil), m.Sources...)
	}
	return m
}

// CloneMessages deep-copies a message list.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
