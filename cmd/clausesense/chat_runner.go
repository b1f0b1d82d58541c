// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main contains the ClauseSense CLI.
//
// This file holds the interactive chat loop and its input abstractions.
//
// Architecture:
//
//	cmd_chat.go → ChatRunner → SessionChatRunner
//	                             ↓
//	                             session.Controller (pkg/session)
//	                             InputReader (stdin abstraction)
//	                             ux.ChatUI (pkg/ux)
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/clausesense/clausesense/pkg/lifecycle"
	"github.com/clausesense/clausesense/pkg/session"
	"github.com/clausesense/clausesense/pkg/ux"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// ChatRunner Interface
// =============================================================================

// ChatRunner runs an interactive chat session.
//
// # Description
//
// Run blocks until the user exits, the input ends or ctx is cancelled.
// Callers MUST call Close when done, typically via defer.
//
// # Outputs
//
// Run returns nil on normal exit ("exit", "quit", Ctrl-D or end of piped
// input) and context.Canceled on shutdown.
type ChatRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// =============================================================================
// InputReader Interface
// =============================================================================

// InputReader abstracts user input reading for testability.
//
// ReadLine returns the trimmed line, or io.EOF when input is exhausted.
type InputReader interface {
	ReadLine() (string, error)
}

// PromptingInputReader is implemented by readers that draw their own prompt
// (the bubbletea reader). The runner checks for it to avoid double prompts.
type PromptingInputReader interface {
	InputReader
	SetPrompt(prompt string)
}

// =============================================================================
// StdinReader Implementation
// =============================================================================

// StdinReader reads newline-terminated lines from a stream.
//
// Not thread-safe. No line editing.
type StdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader creates a StdinReader wrapping os.Stdin.
func NewStdinReader() *StdinReader {
	return NewStreamReader(os.Stdin)
}

// NewStreamReader creates a StdinReader over any stream (piped input, tests).
func NewStreamReader(r io.Reader) *StdinReader {
	return &StdinReader{reader: bufio.NewReader(r)}
}

// ReadLine reads a single line. A final line without a newline is still
// returned; io.EOF follows on the next call.
func (r *StdinReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// InteractiveInputReader Implementation (with history)
// =============================================================================

// InteractiveInputReader reads lines with bubbletea's textinput, giving the
// user line editing and up/down history navigation.
//
// # Limitations
//
//   - History is in-memory only
//   - Ctrl-C clears the current line instead of raising SIGINT, because
//     the terminal is in raw mode while reading
type InteractiveInputReader struct {
	history    []string
	maxHistory int
	prompt     string
}

// inputModel is the bubbletea model for one ReadLine call.
type inputModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int
	draft        string // input typed before navigating history
	done         bool
	eof          bool
}

// NewInteractiveInputReader returns an InteractiveInputReader when stdin is
// a terminal, and a StdinReader otherwise (piped input, CI).
func NewInteractiveInputReader(maxHistory int) InputReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewStdinReader()
	}
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &InteractiveInputReader{
		history:    make([]string, 0, maxHistory),
		maxHistory: maxHistory,
		prompt:     "> ",
	}
}

// SetPrompt implements PromptingInputReader.
func (r *InteractiveInputReader) SetPrompt(prompt string) {
	r.prompt = prompt
}

// ReadLine runs a bubbletea program until Enter, Ctrl-C or Ctrl-D.
//
//   - Enter submits the line
//   - Ctrl-C clears it (returns "")
//   - Ctrl-D on an empty line returns io.EOF
func (r *InteractiveInputReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.Focus()
	ti.CharLimit = 8192
	ti.Width = 80

	m := inputModel{
		textInput:    ti,
		history:      r.history,
		historyIndex: -1,
	}

	finalModel, err := tea.NewProgram(m, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", err
	}
	result, ok := finalModel.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}
	if result.eof {
		return "", io.EOF
	}

	input := strings.TrimSpace(result.textInput.Value())
	if input != "" {
		r.addToHistory(input)
	}
	return input, nil
}

func (r *InteractiveInputReader) addToHistory(input string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == input {
		return
	}
	r.history = append(r.history, input)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

// Init initializes the bubbletea model.
func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key events.
func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlC:
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlD:
			if m.textInput.Value() == "" {
				m.eof = true
				m.done = true
				return m, tea.Quit
			}
			return m, nil

		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.historyIndex == -1 {
				m.draft = m.textInput.Value()
				m.historyIndex = len(m.history) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textInput.SetValue(m.history[m.historyIndex])
			m.textInput.CursorEnd()
			return m, nil

		case tea.KeyDown:
			if m.historyIndex == -1 {
				return m, nil
			}
			if m.historyIndex < len(m.history)-1 {
				m.historyIndex++
				m.textInput.SetValue(m.history[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textInput.SetValue(m.draft)
			}
			m.textInput.CursorEnd()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the input prompt.
func (m inputModel) View() string {
	if m.done {
		return ""
	}
	return m.textInput.View()
}

// =============================================================================
// MockInputReader Implementation (for testing)
// =============================================================================

// MockInputReader returns predetermined inputs, then io.EOF.
type MockInputReader struct {
	inputs []string
	index  int
}

// NewMockInputReader creates a MockInputReader.
//
//	mock := NewMockInputReader([]string{"hello", "exit"})
func NewMockInputReader(inputs []string) *MockInputReader {
	return &MockInputReader{inputs: inputs}
}

// ReadLine returns the next predetermined input.
func (m *MockInputReader) ReadLine() (string, error) {
	if m.index >= len(m.inputs) {
		return "", io.EOF
	}
	line := m.inputs[m.index]
	m.index++
	return line, nil
}

// =============================================================================
// SessionChatRunner
// =============================================================================

// SessionChatRunnerConfig wires a SessionChatRunner.
type SessionChatRunnerConfig struct {
	Controller *session.Controller // required
	Input      InputReader         // required
	UI         ux.ChatUI           // required

	// Out receives the prompt (for non-prompting readers) and spinners.
	Out         io.Writer
	Personality ux.PersonalityLevel

	// Progress animates a spinner while a request is outstanding. Machine
	// mode prints one PROGRESS line per request regardless.
	Progress bool

	// Interrupts stops the outstanding request each time it fires. The CLI
	// feeds SIGINT into it.
	Interrupts <-chan struct{}

	// Picker chooses an archive for a bare /restore. nil disables the picker.
	Picker ArchivePicker

	// InitialFiles are uploaded and analyzed before the first prompt.
	InitialFiles []string

	// ArchiveOnExit archives the conversation when the runner is closed so
	// it can be restored from a later run.
	ArchiveOnExit bool

	APIURL string

	// ReadFile loads an upload from disk. Defaults to datatypes.ReadUploadFile.
	ReadFile func(path string) (datatypes.UploadFile, error)

	Logger *slog.Logger
}

// SessionChatRunner drives a session.Controller from a line-oriented input.
//
// # Description
//
// Lines starting with "/" are commands, "exit" and "quit" end the session,
// everything else is sent as a chat message. Outstanding requests run on a
// separate goroutine so an interrupt can stop them; answers are rendered
// once the request settles.
//
// # Thread Safety
//
// Run must not be called concurrently. The controller observer only queues
// messages under a mutex; all rendering happens on the Run goroutine.
type SessionChatRunner struct {
	controller    *session.Controller
	input         InputReader
	ui            ux.ChatUI
	out           io.Writer
	personality   ux.PersonalityLevel
	progress      bool
	interrupts    <-chan struct{}
	picker        ArchivePicker
	initial       []string
	archiveOnExit bool
	apiURL        string
	readFile      func(string) (datatypes.UploadFile, error)
	logger        *slog.Logger

	mu       sync.Mutex
	queue    []datatypes.Message
	spinner  *ux.Spinner
	archived int
	started  time.Time
	closed   bool
}

// NewSessionChatRunner creates a runner and subscribes it to the controller.
func NewSessionChatRunner(config SessionChatRunnerConfig) *SessionChatRunner {
	out := config.Out
	if out == nil {
		out = os.Stdout
	}
	readFile := config.ReadFile
	if readFile == nil {
		readFile = datatypes.ReadUploadFile
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &SessionChatRunner{
		controller:    config.Controller,
		input:         config.Input,
		ui:            config.UI,
		out:           out,
		personality:   config.Personality,
		progress:      config.Progress,
		interrupts:    config.Interrupts,
		picker:        config.Picker,
		initial:       config.InitialFiles,
		archiveOnExit: config.ArchiveOnExit,
		apiURL:        config.APIURL,
		readFile:      readFile,
		logger:        logger,
	}
	r.controller.Subscribe(r.observe)
	return r
}

// observe runs on whichever goroutine changed the session.
func (r *SessionChatRunner) observe(ev session.Event) {
	if ev.Kind != session.EventMessageAppended || ev.Message.Role != datatypes.RoleAssistant {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Message.Transient {
		if r.spinner != nil {
			r.spinner.UpdateMessage(ev.Message.Text)
		}
		return
	}
	r.queue = append(r.queue, ev.Message)
}

// flush renders queued assistant messages.
func (r *SessionChatRunner) flush() {
	r.mu.Lock()
	queued := r.queue
	r.queue = nil
	r.mu.Unlock()
	for _, m := range queued {
		r.ui.Message(m)
	}
}

// Run executes the chat loop.
func (r *SessionChatRunner) Run(ctx context.Context) error {
	r.started = time.Now()

	snap := r.controller.Snapshot()
	r.ui.Header(ux.HeaderConfig{
		SessionID: snap.ID,
		APIURL:    r.apiURL,
		Documents: snap.FileNames,
	})
	for _, m := range snap.Messages {
		r.ui.Message(m)
	}

	for _, path := range r.initial {
		if ctx.Err() != nil {
			return r.handleShutdown(ctx)
		}
		r.upload(ctx, path)
	}

	for {
		select {
		case <-ctx.Done():
			return r.handleShutdown(ctx)
		default:
		}

		if p, ok := r.input.(PromptingInputReader); ok {
			p.SetPrompt(r.ui.Prompt())
		} else {
			fmt.Fprint(r.out, r.ui.Prompt())
		}

		line, err := r.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.sessionEnd()
				return nil
			}
			if ctx.Err() != nil {
				return r.handleShutdown(ctx)
			}
			r.logger.Error("failed to read input", "error", err)
			return fmt.Errorf("read input: %w", err)
		}
		if line == "" {
			continue
		}

		// Bubbletea clears its area on exit; restore the visual line
		if _, interactive := r.input.(*InteractiveInputReader); interactive {
			fmt.Fprintf(r.out, "%s%s\n", r.ui.Prompt(), line)
		}

		if isExitCommand(line) {
			r.sessionEnd()
			return nil
		}
		if strings.HasPrefix(line, "/") {
			r.handleCommand(ctx, line)
			continue
		}
		r.send(ctx, line)
	}
}

type readResult struct {
	line string
	err  error
}

// readLine reads on a separate goroutine so shutdown is not blocked by a
// pending read. An abandoned read ends when the process exits.
func (r *SessionChatRunner) readLine(ctx context.Context) (string, error) {
	ch := make(chan readResult, 1)
	go func() {
		line, err := r.input.ReadLine()
		ch <- readResult{line: line, err: err}
	}()
	select {
	case res := <-ch:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ===== Chat =====

func (r *SessionChatRunner) send(ctx context.Context, text string) {
	r.await(ctx, "Thinking...", ux.SpinnerDots, func(ctx context.Context) error {
		_, err := r.controller.Send(ctx, text)
		return err
	})
}

func (r *SessionChatRunner) upload(ctx context.Context, path string) {
	file, err := r.readFile(path)
	if err != nil {
		r.ui.Error(err)
		return
	}
	r.await(ctx, fmt.Sprintf("Uploading %s...", file.Name), ux.SpinnerPulse, func(ctx context.Context) error {
		_, err := r.controller.Upload(ctx, file)
		return err
	})
}

// await runs op on its own goroutine with a spinner, forwarding interrupts
// to the controller as Stop until op returns.
func (r *SessionChatRunner) await(ctx context.Context, label string, style ux.SpinnerType, op func(context.Context) error) {
	spin := r.newSpinner(label, style)
	if spin != nil {
		r.mu.Lock()
		r.spinner = spin
		r.mu.Unlock()
		spin.Start()
	}

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	var err error
wait:
	for {
		select {
		case err = <-done:
			break wait
		case <-r.interrupts:
			if r.controller.Stop() {
				r.logger.Debug("request stopped by interrupt")
			}
		case <-ctx.Done():
			// The call context derives from ctx, so op returns promptly.
			err = <-done
			break wait
		}
	}

	if spin != nil {
		r.mu.Lock()
		r.spinner = nil
		r.mu.Unlock()
		spin.Stop()
	}

	r.flush()
	r.report(err)
}

// newSpinner returns nil when progress is hidden. Minimal mode sticks to
// ASCII frames.
func (r *SessionChatRunner) newSpinner(label string, style ux.SpinnerType) *ux.Spinner {
	if !r.progress && r.personality != ux.PersonalityMachine {
		return nil
	}
	if r.personality == ux.PersonalityMinimal {
		style = ux.SpinnerLine
	}
	return ux.NewSpinnerWithWriter(r.out, r.personality, label).WithType(style)
}

// report shows errors that did not become a session message. Backend
// failures and cancellations already appended one.
func (r *SessionChatRunner) report(err error) {
	var reqErr *lifecycle.RequestError
	switch {
	case err == nil:
	case errors.Is(err, lifecycle.ErrCancelled):
	case errors.As(err, &reqErr):
		r.logger.Debug("request failed", "channel", reqErr.Channel, "status", reqErr.StatusCode)
	default:
		r.ui.Error(err)
	}
}

// ===== Commands =====

func (r *SessionChatRunner) handleCommand(ctx context.Context, line string) {
	name, arg := parseCommand(line)
	switch name {
	case "/upload":
		if arg == "" {
			r.ui.Error(errors.New("usage: /upload PATH"))
			return
		}
		r.upload(ctx, arg)
	case "/new":
		r.newChat()
	case "/history":
		r.ui.History(r.controller.History().List())
	case "/restore":
		r.restore(ctx, arg)
	case "/docs":
		r.ui.Documents(r.controller.Snapshot().FileNames)
	case "/help":
		r.ui.Help()
	default:
		r.ui.Error(fmt.Errorf("unknown command %s (try /help)", name))
	}
}

func (r *SessionChatRunner) newChat() {
	r.archiveCurrent()
	r.showSession()
}

// archiveCurrent starts a new session, archiving the current one when it
// holds a conversation.
func (r *SessionChatRunner) archiveCurrent() {
	entry, err := r.controller.NewChat()
	if entry != nil {
		r.archived++
		r.ui.Notice(fmt.Sprintf("Archived %q.", entry.Title))
	}
	if err != nil {
		r.ui.Error(err)
	}
}

func (r *SessionChatRunner) restore(ctx context.Context, arg string) {
	entries := r.controller.History().List()
	if len(entries) == 0 {
		r.ui.History(entries)
		return
	}

	var id string
	if arg == "" {
		if r.picker == nil {
			r.ui.History(entries)
			r.ui.Notice("Use /restore N to reopen one of these chats.")
			return
		}
		picked, err := r.picker.Pick(ctx, entries)
		if err != nil {
			if !errors.Is(err, errPickerAborted) {
				r.ui.Error(err)
			}
			return
		}
		id = picked
	} else {
		resolved, err := resolveArchive(entries, arg)
		if err != nil {
			r.ui.Error(err)
			return
		}
		id = resolved
	}

	// The id is resolved first: archiving the current chat shifts numbering.
	r.archiveCurrent()
	if err := r.controller.Restore(id); err != nil {
		r.ui.Error(err)
		return
	}
	r.showSession()
}

// showSession redraws the header and the full message list.
func (r *SessionChatRunner) showSession() {
	snap := r.controller.Snapshot()
	r.ui.Header(ux.HeaderConfig{
		SessionID: snap.ID,
		APIURL:    r.apiURL,
		Documents: snap.FileNames,
	})
	for _, m := range snap.Messages {
		r.ui.Message(m)
	}
}

// resolveArchive maps "N" (1-based, as listed by /history) or an archive id
// to an archive id.
func resolveArchive(entries []datatypes.ArchivedChat, arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(entries) {
			return "", fmt.Errorf("%w: #%d (have %d)", session.ErrArchiveNotFound, n, len(entries))
		}
		return entries[n-1].ID, nil
	}
	for _, e := range entries {
		if e.ID == arg {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", session.ErrArchiveNotFound, arg)
}

func parseCommand(line string) (name, arg string) {
	name, arg, _ = strings.Cut(strings.TrimSpace(line), " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit":
		return true
	}
	return false
}

// ===== Shutdown =====

func (r *SessionChatRunner) sessionEnd() {
	snap := r.controller.Snapshot()
	r.ui.SessionEnd(ux.SessionStats{
		SessionID: snap.ID,
		Messages:  len(snap.Messages),
		Documents: len(snap.FileNames),
		Archived:  r.archived,
		Duration:  time.Since(r.started),
	})
}

// handleShutdown stops any outstanding request and prints the summary.
func (r *SessionChatRunner) handleShutdown(ctx context.Context) error {
	r.controller.Stop()
	r.flush()
	r.sessionEnd()
	return ctx.Err()
}

// Close archives the conversation when ArchiveOnExit is set. Safe to call
// multiple times; only the first call archives.
func (r *SessionChatRunner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if !r.archiveOnExit {
		return nil
	}
	entry, err := r.controller.NewChat()
	if entry != nil {
		r.logger.Info("conversation archived on exit", "archive_id", entry.ID, "title", entry.Title)
	}
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}
	return nil
}

var _ ChatRunner = (*SessionChatRunner)(nil)
