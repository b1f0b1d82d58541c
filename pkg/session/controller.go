// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session implements the conversational session controller.
//
// # Architecture
//
// The Controller owns exactly one active session: its id, its message list
// and, through a registry.Registry, the documents attached to it. Front ends
// call Upload, Send, Stop, NewChat and Restore and render from Snapshot or
// from events delivered to subscribed observers.
//
//	Ready ──Upload──▶ Uploading ──ok──▶ AwaitingAnalysis ──ok/fail──▶ Ready
//	  │                   └──fail──▶ Ready
//	  └──Send──▶ AwaitingChatResponse ──reply/fail/Stop──▶ Ready
//
// # Concurrency
//
// All methods are safe for concurrent use. The controller's mutex is never
// held while a request is outstanding: each operation records the pending
// lifecycle.Call, releases the lock, awaits the backend and re-acquires the
// lock to apply the result. A result is applied only if its call is still
// the pending one; Stop, NewChat, Restore and replacement all clear the
// pending call, which turns any late result into a no-op.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/clausesense/clausesense/pkg/history"
	"github.com/clausesense/clausesense/pkg/lifecycle"
	"github.com/clausesense/clausesense/pkg/observability"
	"github.com/clausesense/clausesense/pkg/registry"
	"github.com/clausesense/clausesense/pkg/sanitize"
	"github.com/google/uuid"
)

const emptyReplyText = "The assistant returned an empty response. Please try rephrasing your question."

// Controller drives one conversational session at a time.
type Controller struct {
	manager  *lifecycle.Manager
	history  *history.Store
	registry *registry.Registry
	cfg      Config
	logger   *slog.Logger
	metrics  *observability.ClientMetrics

	mu         sync.Mutex
	sessionID  string
	createdAt  time.Time
	greetingID string
	messages   []datatypes.Message
	state      State
	pending    *lifecycle.Call

	// restoredFrom is the archive the current messages came from, and
	// restoredLen the message count at restore time. An unchanged restored
	// session is not archived again.
	restoredFrom string
	restoredLen  int

	obsMu     sync.RWMutex
	observers []Observer
}

// NewController creates a controller with a fresh session.
//
// # Inputs
//
//   - manager: issues upload and chat requests. Must not be nil.
//   - store: receives archived sessions. nil means a private in-memory store.
//   - cfg: policy; zero fields take defaults.
//
// # Outputs
//
//   - *Controller: in StateReady with a greeting message.
func NewController(manager *lifecycle.Manager, store *history.Store, cfg Config) *Controller {
	if store == nil {
		store = history.NewStore()
	}
	cfg = cfg.withDefaults()
	c := &Controller{
		manager:  manager,
		history:  store,
		registry: registry.New(),
		cfg:      cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	c.startSessionLocked()
	return c
}

// ===== Read side =====

// Subscribe registers an observer for all future events.
func (c *Controller) Subscribe(o Observer) {
	if o == nil {
		return
	}
	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()
}

// Snapshot returns a copy of the active session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		ID:          c.sessionID,
		CreatedAt:   c.createdAt,
		State:       c.state,
		DocumentIDs: c.registry.DocumentIDs(),
		FileNames:   c.registry.FileNames(),
		Messages:    datatypes.CloneMessages(c.messages),
	}
}

// Messages returns a copy of the message list.
func (c *Controller) Messages() []datatypes.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return datatypes.CloneMessages(c.messages)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a request is outstanding.
func (c *Controller) Busy() bool {
	return c.State().Busy()
}

// SessionID returns the active session's id.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// History returns the archive store the controller writes to.
func (c *Controller) History() *history.Store {
	return c.history
}

// ===== Upload =====

// Upload sends a document and then asks the backend to analyze it.
//
// # Description
//
// The file is validated locally first. A transient placeholder is shown
// while the upload and the follow-up analysis run. On upload success the
// document is attached to the session and the analysis prompt is sent
// scoped to the new document only. The analysis reply always carries the
// disclaimer.
//
// # Outputs
//
//   - *datatypes.Message: the assistant message appended at the end (the
//     analysis or an error message). nil when nothing was appended.
//   - error: *ValidationError, ErrBusy, lifecycle.ErrCancelled (the request
//     was stopped or superseded), or a lifecycle.RequestError matching
//     lifecycle.ErrUploadFailed / lifecycle.ErrChatFailed.
func (c *Controller) Upload(ctx context.Context, file datatypes.UploadFile) (*datatypes.Message, error) {
	if err := file.Validate(); err != nil {
		var fe *datatypes.FieldError
		if errors.As(err, &fe) {
			return nil, &ValidationError{Field: fe.Field, Reason: fe.Reason}
		}
		return nil, &ValidationError{Field: "file", Reason: err.Error()}
	}

	var events []Event
	c.mu.Lock()
	if err := c.admitLocked(&events); err != nil {
		c.mu.Unlock()
		c.dispatch(events)
		return nil, err
	}
	placeholder := datatypes.NewPlaceholder(fmt.Sprintf("Uploading %s...", file.Name))
	c.appendLocked(placeholder, &events)
	c.setStateLocked(StateUploading, &events)
	call := c.manager.Begin(ctx, lifecycle.ChannelUpload)
	c.pending = call
	sessionID := c.sessionID
	c.mu.Unlock()
	c.dispatch(events)

	c.metrics.SessionEvent("upload")
	c.logger.Info("uploading document",
		"session_id", sessionID,
		"request_id", call.ID(),
		"file", file.Name,
		"size_bytes", file.Size(),
	)

	docID, err := c.manager.Upload(call, file)

	events = nil
	c.mu.Lock()
	if c.pending != call {
		c.mu.Unlock()
		return nil, lifecycle.ErrCancelled
	}
	if err != nil {
		msg := c.failLocked(err, &events)
		c.mu.Unlock()
		c.dispatch(events)
		return msg, err
	}

	c.registry.Attach(docID, file.Name)
	c.removeTransientLocked(&events)
	analyzing := datatypes.NewPlaceholder(fmt.Sprintf("Analyzing %s...", file.Name))
	c.appendLocked(analyzing, &events)
	c.setStateLocked(StateAwaitingAnalysis, &events)
	call = c.manager.Begin(ctx, lifecycle.ChannelChat)
	c.pending = call
	c.mu.Unlock()
	c.dispatch(events)

	c.logger.Info("document uploaded, requesting analysis",
		"session_id", sessionID,
		"request_id", call.ID(),
		"document_id", docID,
	)

	result, err := c.manager.Chat(call, docID, c.cfg.AnalysisPrompt)
	return c.applyReply(call, result, err, true)
}

// ===== Send =====

// Send appends a user message and asks the backend for a reply scoped to
// the attached documents (or general mode when none are attached).
//
// # Outputs
//
//   - *datatypes.Message: the assistant reply or error message appended.
//   - error: *ValidationError for blank input (nothing is appended and no
//     request is made), ErrBusy, lifecycle.ErrCancelled, or a
//     lifecycle.RequestError matching lifecycle.ErrChatFailed.
func (c *Controller) Send(ctx context.Context, text string) (*datatypes.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "message", Reason: "message is empty"}
	}

	var events []Event
	c.mu.Lock()
	if err := c.admitLocked(&events); err != nil {
		c.mu.Unlock()
		c.dispatch(events)
		return nil, err
	}
	c.appendLocked(datatypes.NewMessage(datatypes.RoleUser, text), &events)
	scope := c.registry.ScopeDescriptor()
	c.setStateLocked(StateAwaitingChatResponse, &events)
	call := c.manager.Begin(ctx, lifecycle.ChannelChat)
	c.pending = call
	sessionID := c.sessionID
	c.mu.Unlock()
	c.dispatch(events)

	c.metrics.SessionEvent("send")
	c.logger.Debug("sending chat message",
		"session_id", sessionID,
		"request_id", call.ID(),
		"scope", scope,
	)

	result, err := c.manager.Chat(call, scope, text)
	return c.applyReply(call, result, err, scope != datatypes.GeneralScope)
}

// applyReply applies the outcome of a chat call if call is still pending.
func (c *Controller) applyReply(call *lifecycle.Call, result *lifecycle.ChatResult, err error, documentBound bool) (*datatypes.Message, error) {
	var events []Event
	c.mu.Lock()
	if c.pending != call {
		c.mu.Unlock()
		return nil, lifecycle.ErrCancelled
	}
	if err != nil {
		msg := c.failLocked(err, &events)
		c.mu.Unlock()
		c.dispatch(events)
		return msg, err
	}

	clean := sanitize.Sanitize(result.Text)
	text := clean.Text
	if documentBound || clean.HadDisclaimer || c.cfg.AppendDisclaimerInGeneralMode {
		text = clean.WithDisclaimer(c.cfg.Disclaimer)
	}
	if text == "" {
		text = emptyReplyText
	}

	reply := datatypes.NewMessage(datatypes.RoleAssistant, text)
	if len(result.Sources) > 0 {
		reply.Sources = append([]string(nil), result.Sources...)
	}
	reply.ModelLabel = result.ModelLabel

	c.removeTransientLocked(&events)
	c.appendLocked(reply, &events)
	c.pending = nil
	c.setStateLocked(StateReady, &events)
	c.mu.Unlock()
	c.dispatch(events)

	return &reply, nil
}

// admitLocked applies the concurrent-submission policy.
func (c *Controller) admitLocked(events *[]Event) error {
	if !c.state.Busy() {
		return nil
	}
	if c.cfg.ConcurrentPolicy == ConcurrentPolicyReplace &&
		c.state == StateAwaitingChatResponse && c.pending != nil {
		c.logger.Info("replacing pending chat request",
			"session_id", c.sessionID,
			"request_id", c.pending.ID(),
		)
		c.pending.Cancel()
		c.pending = nil
		c.removeTransientLocked(events)
		c.setStateLocked(StateReady, events)
		c.metrics.SessionEvent("replaced")
		return nil
	}
	c.metrics.SessionEvent("rejected_busy")
	return ErrBusy
}

// failLocked resolves the pending call into a visible error message.
// Cancellation that did not come through Stop (the caller's context was
// cancelled) is reported like Stop.
func (c *Controller) failLocked(err error, events *[]Event) *datatypes.Message {
	if errors.Is(err, lifecycle.ErrCancelled) {
		return c.stopLocked(events)
	}

	c.logger.Warn("request failed",
		"session_id", c.sessionID,
		"state", c.state.String(),
		"error", err,
	)
	msg := datatypes.NewMessage(datatypes.RoleAssistant, "Error: "+lifecycle.DetailOf(err))
	c.removeTransientLocked(events)
	c.appendLocked(msg, events)
	c.pending = nil
	c.setStateLocked(StateReady, events)
	return &msg
}

// ===== Stop =====

// Stop cancels the outstanding request, if any, and appends the stopped
// notice. Whatever the cancelled request returns later is discarded. It
// reports whether there was anything to stop.
func (c *Controller) Stop() bool {
	var events []Event
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return false
	}
	c.stopLocked(&events)
	c.mu.Unlock()
	c.dispatch(events)
	c.metrics.SessionEvent("stop")
	return true
}

func (c *Controller) stopLocked(events *[]Event) *datatypes.Message {
	if c.pending != nil {
		c.logger.Info("request stopped",
			"session_id", c.sessionID,
			"request_id", c.pending.ID(),
			"channel", c.pending.Channel(),
		)
		c.pending.Cancel()
		c.pending = nil
	}
	notice := datatypes.NewMessage(datatypes.RoleAssistant, c.cfg.StoppedNotice)
	c.removeTransientLocked(events)
	c.appendLocked(notice, events)
	c.setStateLocked(StateReady, events)
	return &notice
}

// ===== NewChat / Restore =====

// NewChat archives the current session, if it holds anything beyond the
// greeting, and starts a fresh one. Any outstanding request is cancelled
// silently.
//
// # Outputs
//
//   - *datatypes.ArchivedChat: the archive created, or nil.
//   - error: non-nil only if the archive could not be persisted; it is still
//     kept in memory and the new session is started regardless.
func (c *Controller) NewChat() (*datatypes.ArchivedChat, error) {
	var events []Event
	c.mu.Lock()
	c.cancelPendingLocked(&events)

	var entry *datatypes.ArchivedChat
	if c.worthArchivingLocked() {
		fileNames := c.registry.FileNames()
		archived := datatypes.ArchivedChat{
			ID:          uuid.NewString(),
			Title:       deriveTitle(fileNames, c.messages, c.cfg.TitleMaxLength),
			Messages:    datatypes.CloneMessages(c.messages),
			CreatedAt:   c.cfg.Clock(),
			DocumentIDs: c.registry.DocumentIDs(),
			FileNames:   fileNames,
		}
		if len(fileNames) > 0 {
			archived.AttachedFileName = fileNames[0]
		}
		entry = &archived
	}
	oldID := c.sessionID

	c.setStateLocked(StateIdle, &events)
	c.registry.Reset()
	c.startSessionLocked()
	events = append(events,
		Event{Kind: EventSessionReset, SessionID: c.sessionID, Messages: datatypes.CloneMessages(c.messages)},
		Event{Kind: EventStateChanged, State: c.state},
	)
	newID := c.sessionID
	c.mu.Unlock()

	var err error
	if entry != nil {
		err = c.history.Archive(*entry)
		c.metrics.SessionEvent("archive")
		c.logger.Info("session archived",
			"session_id", oldID,
			"archive_id", entry.ID,
			"title", entry.Title,
			"messages", len(entry.Messages),
		)
	}
	c.metrics.SessionEvent("new_chat")
	c.logger.Debug("new session started", "session_id", newID)
	c.dispatch(events)
	return entry, err
}

// Restore replaces the current messages with an archived snapshot and
// re-attaches the archive's documents. The backend may no longer hold those
// documents, so the re-attachment is best effort. The current session is
// not archived; call NewChat first to keep it.
func (c *Controller) Restore(archiveID string) error {
	entry, err := c.history.Get(archiveID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrArchiveNotFound, archiveID)
	}

	var events []Event
	c.mu.Lock()
	c.cancelPendingLocked(&events)
	c.sessionID = uuid.NewString()
	c.createdAt = c.cfg.Clock()
	c.greetingID = ""
	c.messages = datatypes.CloneMessages(entry.Messages)
	c.restoredFrom = entry.ID
	c.restoredLen = len(c.messages)

	c.registry.Seed(entry.DocumentIDs, entry.FileNames)

	c.setStateLocked(StateReady, &events)
	events = append(events, Event{Kind: EventSessionReset, SessionID: c.sessionID, Messages: datatypes.CloneMessages(c.messages)})
	sessionID := c.sessionID
	c.mu.Unlock()

	c.metrics.SessionEvent("restore")
	c.logger.Info("archived chat restored",
		"session_id", sessionID,
		"archive_id", entry.ID,
		"documents", len(entry.DocumentIDs),
	)
	c.dispatch(events)
	return nil
}

func (c *Controller) cancelPendingLocked(events *[]Event) {
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
	c.removeTransientLocked(events)
}

func (c *Controller) worthArchivingLocked() bool {
	if c.restoredFrom != "" && len(c.messages) == c.restoredLen {
		return false
	}
	for _, m := range c.messages {
		if m.ID != c.greetingID && !m.Transient {
			return true
		}
	}
	return false
}

func (c *Controller) startSessionLocked() {
	greeting := datatypes.NewMessage(datatypes.RoleAssistant, c.cfg.Greeting)
	c.sessionID = uuid.NewString()
	c.createdAt = c.cfg.Clock()
	c.greetingID = greeting.ID
	c.messages = []datatypes.Message{greeting}
	c.restoredFrom = ""
	c.restoredLen = 0
	c.pending = nil
	c.state = StateReady
}

// ===== Message list helpers =====

func (c *Controller) appendLocked(m datatypes.Message, events *[]Event) {
	c.messages = append(c.messages, m)
	*events = append(*events, Event{Kind: EventMessageAppended, SessionID: c.sessionID, Message: m.Clone()})
}

func (c *Controller) removeTransientLocked(events *[]Event) {
	c.messages = slices.DeleteFunc(c.messages, func(m datatypes.Message) bool {
		if m.Transient {
			*events = append(*events, Event{Kind: EventMessageRemoved, SessionID: c.sessionID, MessageID: m.ID})
			return true
		}
		return false
	})
}

func (c *Controller) setStateLocked(s State, events *[]Event) {
	if c.state == s {
		return
	}
	c.state = s
	*events = append(*events, Event{Kind: EventStateChanged, SessionID: c.sessionID, State: s})
}

func (c *Controller) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	c.obsMu.RLock()
	observers := slices.Clone(c.observers)
	c.obsMu.RUnlock()

	for _, ev := range events {
		for _, o := range observers {
			o(ev)
		}
	}
}
