// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// UploadFile.Validate
// =============================================================================

func TestUploadFile_Validate(t *testing.T) {
	tests := []struct {
		name       string
		file       UploadFile
		wantReason string
	}{
		{name: "valid pdf", file: UploadFile{Name: "nda.pdf", Content: []byte("x")}},
		{name: "valid docx upper case", file: UploadFile{Name: "LEASE.DOCX", Content: []byte("x")}},
		{name: "valid txt", file: UploadFile{Name: "notes.txt", Content: []byte("x")}},
		{name: "missing name", file: UploadFile{Content: []byte("x")}, wantReason: "file name is required"},
		{name: "bad extension", file: UploadFile{Name: "image.png", Content: []byte("x")}, wantReason: "unsupported file type"},
		{name: "no extension", file: UploadFile{Name: "README", Content: []byte("x")}, wantReason: "unsupported file type"},
		{name: "nil content", file: UploadFile{Name: "a.pdf"}, wantReason: "file is empty"},
		{name: "empty content", file: UploadFile{Name: "a.pdf", Content: []byte{}}, wantReason: "file is empty"},
		{
			name:       "too large",
			file:       UploadFile{Name: "a.pdf", Content: bytes.Repeat([]byte("a"), MaxUploadBytes+1)},
			wantReason: "file too large (2097153 bytes), limit is 2097152 bytes",
		},
		{name: "exactly at limit", file: UploadFile{Name: "a.pdf", Content: bytes.Repeat([]byte("a"), MaxUploadBytes)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Validate()
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			var fe *FieldError
			require.True(t, errors.As(err, &fe), "expected *FieldError, got %v", err)
			assert.Equal(t, "file", fe.Field)
			assert.Contains(t, fe.Reason, tt.wantReason)
		})
	}
}

func TestReadUploadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "contract.txt")
	require.NoError(t, os.WriteFile(path, []byte("The parties agree"), 0o600))

	f, err := ReadUploadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "contract.txt", f.Name)
	assert.Equal(t, int64(17), f.Size())

	big := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("a"), MaxUploadBytes+10), 0o600))
	_, err = ReadUploadFile(big)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "file too large (2097162 bytes), limit is 2097152 bytes (2MB)", fe.Reason)

	_, err = ReadUploadFile(dir)
	assert.Error(t, err)

	_, err = ReadUploadFile(filepath.Join(dir, "missing.pdf"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// =============================================================================
// Messages and archives
// =============================================================================

func TestNewMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		m := NewMessage(RoleUser, "hi")
		assert.False(t, seen[m.ID])
		seen[m.ID] = true
	}
}

func TestNewPlaceholder(t *testing.T) {
	p := NewPlaceholder("Uploading...")
	assert.True(t, p.Transient)
	assert.Equal(t, RoleAssistant, p.Role)
}

func TestArchivedChat_Clone(t *testing.T) {
	a := ArchivedChat{
		ID:          "x",
		Messages:    []Message{{ID: "1", Role: RoleUser, Sources: []string{"p1"}}, {ID: "2", Role: RoleAssistant}},
		DocumentIDs: []string{"d"},
		FileNames:   []string{"f.pdf"},
	}
	c := a.Clone()
	c.Messages[0].Sources[0] = "changed"
	c.DocumentIDs[0] = "changed"

	assert.Equal(t, "p1", a.Messages[0].Sources[0])
	assert.Equal(t, "d", a.DocumentIDs[0])
	assert.Equal(t, 1, a.UserMessageCount())
}
