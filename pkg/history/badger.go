// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces archive records inside the database.
var keyPrefix = []byte("archive/")

// BadgerConfig configures a BadgerPersister.
type BadgerConfig struct {
	// Dir is the database directory. Created if missing. Ignored when
	// InMemory is true.
	Dir string

	// InMemory keeps the database in RAM only. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every archive.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. nil silences them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerPersister stores archived chats in BadgerDB.
//
// Keys are keyPrefix + big-endian CreatedAt nanoseconds + archive id, so a
// reverse prefix scan yields most recent first. Values are JSON.
type BadgerPersister struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the history database.
//
// # Outputs
//
//   - *BadgerPersister: caller must Close it.
//   - error: non-nil if Dir is missing or the database cannot be opened.
//
// Thread Safety: the returned persister is safe for concurrent use.
func OpenBadger(cfg BadgerConfig) (*BadgerPersister, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("history directory is required for persistent storage")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &BadgerPersister{db: db}, nil
}

func archiveKey(entry datatypes.ArchivedChat) []byte {
	key := make([]byte, 0, len(keyPrefix)+8+len(entry.ID))
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(entry.CreatedAt.UnixNano()))
	return append(key, entry.ID...)
}

// Save implements Persister.
func (p *BadgerPersister) Save(entry datatypes.ArchivedChat) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal archived chat: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(archiveKey(entry), value)
	})
}

// LoadAll implements Persister.
func (p *BadgerPersister) LoadAll() ([]datatypes.ArchivedChat, error) {
	var entries []datatypes.ArchivedChat

	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last key with the prefix.
		seek := append(append([]byte(nil), keyPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(keyPrefix); it.Next() {
			var entry datatypes.ArchivedChat
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decode %q: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

// Close implements Persister.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}

var _ Persister = (*BadgerPersister)(nil)
