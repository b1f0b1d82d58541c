// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"log/slog"
	"time"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/clausesense/clausesense/pkg/observability"
)

// =============================================================================
// State
// =============================================================================

// State is the controller's position in the session state machine.
type State int

const (
	// StateIdle is only observable between tearing a session down and
	// starting the next one.
	StateIdle State = iota

	// StateReady accepts user input.
	StateReady

	// StateUploading waits for the upload endpoint.
	StateUploading

	// StateAwaitingAnalysis waits for the automatic post-upload analysis.
	StateAwaitingAnalysis

	// StateAwaitingChatResponse waits for a reply to a user message.
	StateAwaitingChatResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateUploading:
		return "uploading"
	case StateAwaitingAnalysis:
		return "awaiting_analysis"
	case StateAwaitingChatResponse:
		return "awaiting_chat_response"
	default:
		return "unknown"
	}
}

// Busy reports whether s is one of the states that block new submissions.
func (s State) Busy() bool {
	return s == StateUploading || s == StateAwaitingAnalysis || s == StateAwaitingChatResponse
}

// ConcurrentPolicy decides what a submission does while a chat is pending.
type ConcurrentPolicy int

const (
	// ConcurrentPolicyReject refuses the submission with ErrBusy.
	ConcurrentPolicyReject ConcurrentPolicy = iota

	// ConcurrentPolicyReplace cancels the pending chat and proceeds.
	// Uploads and post-upload analysis are never replaced.
	ConcurrentPolicyReplace
)

// =============================================================================
// Config
// =============================================================================

const (
	DefaultGreeting       = "Hi! I'm your AI legal advisor. Ask me anything about your contract, or upload a document to get started."
	DefaultAnalysisPrompt = "Analyze the uploaded document. Summarize its purpose and key clauses, flag unusual or risky terms, and point out anything worth negotiating."
	DefaultDisclaimer     = "(Disclaimer: I am an AI, not a lawyer. This is not legal advice.)"
	DefaultStoppedNotice  = "Response stopped."
	DefaultTitleMaxLength = 40
	UntitledChat          = "Untitled chat"
)

// Config holds controller policy and collaborators. Zero values get
// defaults from withDefaults.
type Config struct {
	// Greeting is the first assistant message of every new session.
	Greeting string

	// AnalysisPrompt is sent, scoped to the new document, after each upload.
	AnalysisPrompt string

	// Disclaimer is the canonical suffix attached to legal answers.
	Disclaimer string

	// StoppedNotice is appended when the user stops a request.
	StoppedNotice string

	// AppendDisclaimerInGeneralMode also attaches the disclaimer to answers
	// given without any document in scope.
	AppendDisclaimerInGeneralMode bool

	// ConcurrentPolicy applies to submissions made while a chat is pending.
	ConcurrentPolicy ConcurrentPolicy

	// TitleMaxLength bounds archive titles derived from the first user
	// message, in runes.
	TitleMaxLength int

	Logger  *slog.Logger
	Metrics *observability.ClientMetrics

	// Clock stamps archives. Defaults to time.Now.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	if c.AnalysisPrompt == "" {
		c.AnalysisPrompt = DefaultAnalysisPrompt
	}
	if c.Disclaimer == "" {
		c.Disclaimer = DefaultDisclaimer
	}
	if c.StoppedNotice == "" {
		c.StoppedNotice = DefaultStoppedNotice
	}
	if c.TitleMaxLength <= 0 {
		c.TitleMaxLength = DefaultTitleMaxLength
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// =============================================================================
// Snapshot and events
// =============================================================================

// Session is a point-in-time copy of the controller's session.
type Session struct {
	ID          string
	CreatedAt   time.Time
	State       State
	DocumentIDs []string
	FileNames   []string
	Messages    []datatypes.Message
}

// EventKind says what changed.
type EventKind int

const (
	EventMessageAppended EventKind = iota
	EventMessageRemoved
	EventSessionReset
	EventStateChanged
)

// Event describes one change to the session.
//
// Message is set for EventMessageAppended, MessageID for
// EventMessageRemoved, State for EventStateChanged and SessionID for
// EventSessionReset (where Messages holds the new list).
type Event struct {
	Kind      EventKind
	SessionID string
	Message   datatypes.Message
	MessageID string
	Messages  []datatypes.Message
	State     State
}

// Observer receives events. Observers run on the goroutine that caused the
// change, after the controller's lock is released, so they may call back
// into the controller.
type Observer func(Event)
