// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lifecycle issues cancellable upload and chat requests against the
// analysis backend.
//
// # Architecture
//
//	session.Controller → Manager.Begin(channel) → *Call (cancellation token)
//	                   → Manager.Upload / Manager.Chat(call, ...)
//	                                 ↓
//	                         Transport (backend.Client)
//
// Every request runs under a *Call. Cancelling the call cancels its context
// and, more importantly, marks it so that whatever the transport returns
// afterwards is converted to ErrCancelled. Cancellation is cooperative: the
// backend may still finish the work, only client-side effects are suppressed.
//
// The Manager tracks one in-flight call per channel so a front end can
// "stop" without holding on to the handle itself. It does not refuse a second
// Begin on a busy channel; that policy belongs to the session controller.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clausesense/clausesense/pkg/backend"
	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/clausesense/clausesense/pkg/observability"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// =============================================================================
// Channel and Call
// =============================================================================

// Channel is a logical request stream with at most one in-flight call.
type Channel string

const (
	ChannelUpload Channel = "upload"
	ChannelChat   Channel = "chat"
)

// Call is an outstanding request and its cancellation handle.
//
// Call is safe for concurrent use; Cancel may be called from any goroutine,
// any number of times.
type Call struct {
	id        string
	channel   Channel
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	started   time.Time
}

// ID returns the call's unique id (used as request_id in logs).
func (c *Call) ID() string { return c.id }

// Channel returns the channel the call belongs to.
func (c *Call) Channel() Channel { return c.channel }

// Context returns the call's context. It is done once the call is cancelled.
func (c *Call) Context() context.Context { return c.ctx }

// Cancel signals the call. Results arriving afterwards are discarded.
func (c *Call) Cancel() {
	c.cancelled.Store(true)
	c.cancel()
}

// Cancelled reports whether Cancel was called.
func (c *Call) Cancelled() bool {
	return c.cancelled.Load()
}

// =============================================================================
// Transport
// =============================================================================

// Transport performs the actual HTTP exchanges. *backend.Client implements it.
type Transport interface {
	Upload(ctx context.Context, file datatypes.UploadFile) (*backend.UploadResponse, error)
	Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
}

var _ Transport = (*backend.Client)(nil)

// ChatResult is a successful chat reply, still unsanitized.
type ChatResult struct {
	Text       string
	Sources    []string
	ModelLabel string
}

// =============================================================================
// Manager
// =============================================================================

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records request metrics.
func WithMetrics(metrics *observability.ClientMetrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithRateLimit limits how often requests are dispatched. perMinute <= 0
// disables limiting. Waiting for a token is itself cancellable.
func WithRateLimit(perMinute, burst int) Option {
	return func(m *Manager) {
		if perMinute <= 0 {
			m.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// Manager issues cancellable requests over a Transport.
type Manager struct {
	transport Transport
	logger    *slog.Logger
	metrics   *observability.ClientMetrics
	limiter   *rate.Limiter

	mu       sync.Mutex
	inFlight map[Channel]*Call
}

// NewManager creates a Manager.
func NewManager(transport Transport, opts ...Option) *Manager {
	m := &Manager{
		transport: transport,
		logger:    slog.Default(),
		inFlight:  make(map[Channel]*Call),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin creates a call on channel and records it as the channel's in-flight
// token, replacing any previous one. The call's context derives from ctx.
func (m *Manager) Begin(ctx context.Context, channel Channel) *Call {
	callCtx, cancel := context.WithCancel(ctx)
	call := &Call{
		id:      uuid.NewString(),
		channel: channel,
		ctx:     callCtx,
		cancel:  cancel,
		started: time.Now(),
	}

	m.mu.Lock()
	m.inFlight[channel] = call
	m.mu.Unlock()

	m.metrics.RequestStarted(string(channel))
	return call
}

// InFlight returns the channel's outstanding call, or nil.
func (m *Manager) InFlight(channel Channel) *Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[channel]
}

// Cancel signals the channel's in-flight call. It reports whether there was
// one.
func (m *Manager) Cancel(channel Channel) bool {
	m.mu.Lock()
	call := m.inFlight[channel]
	m.mu.Unlock()

	if call == nil {
		return false
	}
	call.Cancel()
	m.logger.Info("request cancelled",
		"request_id", call.id,
		"channel", channel,
	)
	return true
}

// Upload sends file under call and returns the backend document id.
//
// # Outputs
//
//   - string: document id on success
//   - error: ErrCancelled if call was cancelled before the result was
//     applied; a *RequestError matching ErrUploadFailed otherwise.
func (m *Manager) Upload(call *Call, file datatypes.UploadFile) (string, error) {
	var docID string
	err := m.run(call, func(ctx context.Context) error {
		resp, err := m.transport.Upload(ctx, file)
		if err != nil {
			return err
		}
		docID = resp.ID()
		return nil
	})
	if err != nil {
		return "", err
	}
	return docID, nil
}

// Chat sends message scoped to scope under call.
//
// scope is a document id, ids joined by datatypes.ScopeSeparator, or
// datatypes.GeneralScope. Errors follow the same contract as Upload with
// ErrChatFailed.
func (m *Manager) Chat(call *Call, scope, message string) (*ChatResult, error) {
	var result *ChatResult
	err := m.run(call, func(ctx context.Context) error {
		resp, err := m.transport.Chat(ctx, backend.ChatRequest{DocumentID: scope, Message: message})
		if err != nil {
			return err
		}
		result = &ChatResult{
			Text:       resp.Response,
			Sources:    resp.Sources,
			ModelLabel: resp.Label(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run executes fn under call and normalizes the outcome.
//
// The cancellation check happens after fn returns: a transport that ignores
// its context still cannot make a cancelled call look successful.
func (m *Manager) run(call *Call, fn func(ctx context.Context) error) error {
	defer m.finish(call)

	var err error
	if m.limiter != nil {
		err = m.limiter.Wait(call.ctx)
	}
	if err == nil {
		err = fn(call.ctx)
	}

	outcome := observability.OutcomeSuccess
	defer func() {
		m.metrics.RequestFinished(string(call.channel), outcome, time.Since(call.started).Seconds())
	}()

	if call.Cancelled() || errors.Is(err, context.Canceled) {
		outcome = observability.OutcomeCancelled
		m.logger.Debug("suppressing result of cancelled request",
			"request_id", call.id,
			"channel", call.channel,
		)
		return ErrCancelled
	}
	if err != nil {
		outcome = observability.OutcomeFailure
		reqErr := m.toRequestError(call.channel, err)
		m.logger.Warn("request failed",
			"request_id", call.id,
			"channel", call.channel,
			"status_code", reqErr.StatusCode,
			"detail", reqErr.Detail,
			"error", err,
		)
		return reqErr
	}
	return nil
}

// finish releases the channel slot if call still owns it and frees the
// call's context resources.
func (m *Manager) finish(call *Call) {
	m.mu.Lock()
	if m.inFlight[call.channel] == call {
		delete(m.inFlight, call.channel)
	}
	m.mu.Unlock()
	call.cancel()
}

func (m *Manager) toRequestError(channel Channel, err error) *RequestError {
	reqErr := &RequestError{Channel: channel, Err: err}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		reqErr.StatusCode = apiErr.StatusCode
		reqErr.Detail = apiErr.Detail
	}
	if reqErr.Detail == "" {
		if channel == ChannelUpload {
			reqErr.Detail = genericUploadDetail
		} else {
			reqErr.Detail = genericChatDetail
		}
	}
	return reqErr
}
