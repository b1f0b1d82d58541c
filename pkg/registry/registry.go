// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry tracks the documents attached to the active session and
// derives the chat scope sent to the backend.
package registry

import (
	"strings"
	"sync"

	"github.com/clausesense/clausesense/pkg/datatypes"
)

// Registry is an ordered list of (document id, filename) pairs.
//
// The two lists always have equal length and are index aligned. Documents
// are only ever appended or cleared all at once. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	ids       []string
	fileNames []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Attach appends a document. Duplicate ids are kept; the backend treats the
// scope as a set.
func (r *Registry) Attach(documentID, fileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, documentID)
	r.fileNames = append(r.fileNames, fileName)
}

// Reset detaches every document.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = nil
	r.fileNames = nil
}

// Seed replaces the registry contents. Extra entries in the longer slice are
// ignored so the lists stay aligned.
func (r *Registry) Seed(documentIDs, fileNames []string) {
	n := min(len(documentIDs), len(fileNames))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append([]string(nil), documentIDs[:n]...)
	r.fileNames = append([]string(nil), fileNames[:n]...)
}

// ScopeDescriptor returns datatypes.GeneralScope when nothing is attached,
// otherwise the ids joined by datatypes.ScopeSeparator in attachment order.
func (r *Registry) ScopeDescriptor() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ids) == 0 {
		return datatypes.GeneralScope
	}
	return strings.Join(r.ids, datatypes.ScopeSeparator)
}

// DocumentIDs returns a copy of the attached ids.
func (r *Registry) DocumentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.ids...)
}

// FileNames returns a copy of the attached filenames.
func (r *Registry) FileNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fileNames...)
}

// Len returns the number of attached documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
