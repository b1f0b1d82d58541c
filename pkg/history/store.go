// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history keeps archived chats, most recent first.
//
// The Store is always in memory. An optional Persister mirrors every archive
// to durable storage so history survives restarts; BadgerPersister is the
// BadgerDB-backed implementation used by the CLI.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/clausesense/clausesense/pkg/datatypes"
)

// ErrNotFound is returned by Get for an unknown archive id.
var ErrNotFound = errors.New("archived chat not found")

// Persister stores archived chats durably.
type Persister interface {
	// Save writes one entry.
	Save(entry datatypes.ArchivedChat) error

	// LoadAll returns every stored entry, most recent first.
	LoadAll() ([]datatypes.ArchivedChat, error)

	// Close releases the underlying storage.
	Close() error
}

// Store is an append-only list of archived chats.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entries   []datatypes.ArchivedChat
	persister Persister
	logger    *slog.Logger
}

// NewStore returns an empty, memory-only store.
func NewStore() *Store {
	return &Store{logger: slog.Default()}
}

// Open returns a store backed by p, preloaded with p's entries.
//
// # Inputs
//
//   - p: persister to load from and mirror to. nil behaves like NewStore.
//   - logger: optional; slog.Default() when nil.
//
// # Outputs
//
//   - *Store: ready store. The caller closes it with Close.
//   - error: non-nil when the persisted entries cannot be read.
func Open(p Persister, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{persister: p, logger: logger}
	if p == nil {
		return s, nil
	}

	entries, err := p.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	s.entries = entries
	logger.Debug("history loaded", "entries", len(entries))
	return s, nil
}

// Archive prepends entry. The in-memory list is updated even when
// persisting fails; the persist error is returned so callers can warn.
func (s *Store) Archive(entry datatypes.ArchivedChat) error {
	entry = entry.Clone()

	s.mu.Lock()
	s.entries = append([]datatypes.ArchivedChat{entry}, s.entries...)
	p := s.persister
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	if err := p.Save(entry); err != nil {
		s.logger.Warn("failed to persist archived chat", "archive_id", entry.ID, "error", err)
		return fmt.Errorf("persist archived chat %s: %w", entry.ID, err)
	}
	return nil
}

// List returns a copy of every entry, most recent first.
func (s *Store) List() []datatypes.ArchivedChat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]datatypes.ArchivedChat, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Get returns a copy of the entry with id.
func (s *Store) Get(id string) (datatypes.ArchivedChat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return datatypes.ArchivedChat{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Len returns the number of archived chats.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close closes the persister, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	p := s.persister
	s.persister = nil
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Close()
}
