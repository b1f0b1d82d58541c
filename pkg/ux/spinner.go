// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerType defines the animation style
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerLine
	SpinnerPulse
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:  {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerLine:  {"-", "\\", "|", "/"},
	SpinnerPulse: {"◐", "◓", "◑", "◒"},
}

const spinnerInterval = 80 * time.Millisecond

// Spinner is an animated single-line progress indicator. In machine mode it
// prints the message once instead of animating.
//
// A Spinner is single-use: once stopped it cannot be restarted.
type Spinner struct {
	writer      io.Writer
	personality PersonalityLevel
	spinType    SpinnerType

	mu         sync.Mutex
	message    string
	running    bool
	stopped    bool
	frameIndex int
	stop       chan struct{}
	done       chan struct{}
}

// NewSpinnerWithWriter creates a spinner on w.
func NewSpinnerWithWriter(w io.Writer, personality PersonalityLevel, message string) *Spinner {
	return &Spinner{
		writer:      w,
		personality: personality,
		message:     message,
		spinType:    SpinnerDots,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// WithType sets the animation style. Call before Start.
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	s.spinType = t
	return s
}

// Start begins the animation. Repeated calls are no-ops.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	msg := s.message
	s.mu.Unlock()

	if s.personality == PersonalityMachine {
		fmt.Fprintf(s.writer, "PROGRESS: %s\n", msg)
		close(s.done)
		return
	}

	go s.loop()
}

func (s *Spinner) loop() {
	defer close(s.done)
	frames := spinnerFrames[s.spinType]
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			fmt.Fprint(s.writer, "\r\033[K")
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := frames[s.frameIndex]
			s.frameIndex = (s.frameIndex + 1) % len(frames)
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.writer, "\r\033[K%s %s", Styles.Highlight.Render(frame), msg)
		}
	}
}

// Stop halts the animation and clears the line. Safe to call repeatedly and
// before Start.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	if s.personality != PersonalityMachine {
		close(s.stop)
	}
	<-s.done
}

// UpdateMessage changes the message shown on the next frame.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
