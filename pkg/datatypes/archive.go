// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// ArchivedChat is a frozen copy of a finished session.
//
// # Description
//
// Archives are created only when a session is replaced and are never mutated
// afterwards. DocumentIDs and FileNames are index-aligned copies of the
// registry at archive time; restoring uses them on a best-effort basis since
// the backend does not guarantee the documents still exist.
type ArchivedChat struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Messages         []Message `json:"messages"`
	CreatedAt        time.Time `json:"created_at"`
	AttachedFileName string    `json:"attached_file_name,omitempty"`
	DocumentIDs      []string  `json:"document_ids,omitempty"`
	FileNames        []string  `json:"file_names,omitempty"`
}

// Clone deep-copies the archive.
func (a ArchivedChat) Clone() ArchivedChat {
	a.Messages = CloneMessages(a.Messages)
	if a.DocumentIDs != nil {
		a.DocumentIDs = append([]string(nil), a.DocumentIDs...)
	}
	if a.FileNames != nil {
		a.FileNames = append([]string(nil), a.FileNames...)
	}
	return a
}

// UserMessageCount counts the user-authored messages in the snapshot.
func (a ArchivedChat) UserMessageCount() int {
	n := 0
	for _, m := range a.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}
