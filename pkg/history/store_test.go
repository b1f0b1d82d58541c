// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"errors"
	"testing"
	"time"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archive(id string, at time.Time) datatypes.ArchivedChat {
	return datatypes.ArchivedChat{
		ID:        id,
		Title:     "chat " + id,
		CreatedAt: at,
		Messages: []datatypes.Message{
			{ID: id + "-m1", Role: datatypes.RoleUser, Text: "question " + id, Sources: []string{"s"}},
		},
		DocumentIDs: []string{"doc-" + id},
		FileNames:   []string{id + ".pdf"},
	}
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func ids(entries []datatypes.ArchivedChat) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// =============================================================================
// In-memory store
// =============================================================================

func TestStore_ArchivePrepends(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Archive(archive("a", base)))
	require.NoError(t, s.Archive(archive("b", base.Add(time.Minute))))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"b", "a"}, ids(s.List()))
}

func TestStore_ListReturnsCopies(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Archive(archive("a", base)))

	list := s.List()
	list[0].Title = "changed"
	list[0].Messages[0].Sources[0] = "changed"

	again := s.List()
	assert.Equal(t, "chat a", again[0].Title)
	assert.Equal(t, "s", again[0].Messages[0].Sources[0])
}

func TestStore_ArchiveCopiesInput(t *testing.T) {
	s := NewStore()
	entry := archive("a", base)
	require.NoError(t, s.Archive(entry))

	entry.Messages[0].Text = "mutated after archive"
	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "question a", got.Messages[0].Text)
}

func TestStore_GetNotFound(t *testing.T) {
	_, err := NewStore().Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

type failingPersister struct{}

func (failingPersister) Save(datatypes.ArchivedChat) error          { return errors.New("disk full") }
func (failingPersister) LoadAll() ([]datatypes.ArchivedChat, error) { return nil, nil }
func (failingPersister) Close() error                               { return nil }

func TestStore_PersistFailureKeepsMemoryEntry(t *testing.T) {
	s, err := Open(failingPersister{}, nil)
	require.NoError(t, err)

	err = s.Archive(archive("a", base))
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, s.Len())
}

// =============================================================================
// Badger persistence
// =============================================================================

func TestBadgerPersister_RoundTripMostRecentFirst(t *testing.T) {
	p, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	s, err := Open(p, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Archive(archive("old", base)))
	require.NoError(t, s.Archive(archive("new", base.Add(time.Hour))))
	require.NoError(t, s.Archive(archive("mid", base.Add(time.Minute))))

	loaded, err := p.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(loaded))
	assert.Equal(t, []string{"doc-new"}, loaded[0].DocumentIDs)
	assert.Equal(t, "question new", loaded[0].Messages[0].Text)
	assert.True(t, loaded[0].CreatedAt.Equal(base.Add(time.Hour)))
}

func TestBadgerPersister_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	p, err := OpenBadger(BadgerConfig{Dir: dir})
	require.NoError(t, err)
	s, err := Open(p, nil)
	require.NoError(t, err)
	require.NoError(t, s.Archive(archive("kept", base)))
	require.NoError(t, s.Close())

	p2, err := OpenBadger(BadgerConfig{Dir: dir})
	require.NoError(t, err)
	s2, err := Open(p2, nil)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, 1, s2.Len())
	got, err := s2.Get("kept")
	require.NoError(t, err)
	assert.Equal(t, "chat kept", got.Title)
}

func TestOpenBadger_RequiresDir(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	p, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	s, err := Open(p, nil)
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
