// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Upload Limits
// =============================================================================

const (
	// MaxUploadBytes mirrors the backend's 2MB limit for text-based RAG.
	MaxUploadBytes = 2 * 1024 * 1024
)

// AllowedExtensions are the document types the backend can parse.
var AllowedExtensions = []string{".pdf", ".docx", ".txt"}

// =============================================================================
// Shared Validator Instance
// =============================================================================

var uploadValidate *validator.Validate

func init() {
	uploadValidate = validator.New()
	_ = uploadValidate.RegisterValidation("docext", validateDocExtension)
}

func validateDocExtension(fl validator.FieldLevel) bool {
	return HasAllowedExtension(fl.Field().String())
}

// HasAllowedExtension reports whether name ends in a supported extension.
// The comparison is case-insensitive.
func HasAllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// =============================================================================
// UploadFile
// =============================================================================

// UploadFile is a document to send to the upload endpoint.
//
// The content is held in memory; MaxUploadBytes keeps that bounded.
type UploadFile struct {
	Name    string `validate:"required,docext"`
	Content []byte `validate:"required,min=1,max=2097152"`
}

// Size returns the payload size in bytes.
func (f UploadFile) Size() int64 {
	return int64(len(f.Content))
}

// Validate checks the file against the backend's upload constraints.
//
// # Outputs
//
//   - error: nil when valid, otherwise a *FieldError naming the first
//     offending field with a human-readable reason.
func (f UploadFile) Validate() error {
	err := uploadValidate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Name":
		if fe.Tag() == "required" {
			return &FieldError{Field: "file", Reason: "file name is required"}
		}
		return &FieldError{
			Field:  "file",
			Reason: fmt.Sprintf("unsupported file type %q (allowed: %s)", filepath.Ext(f.Name), strings.Join(AllowedExtensions, ", ")),
		}
	case "Content":
		if fe.Tag() == "required" || fe.Tag() == "min" {
			return &FieldError{Field: "file", Reason: "file is empty"}
		}
		return &FieldError{Field: "file", Reason: tooLargeReason(f.Size())}
	}
	return &FieldError{Field: strings.ToLower(fe.Field()), Reason: fe.Error()}
}

// tooLargeReason reports exact byte counts so a file just over the limit
// is not shown as "2.00MB".
func tooLargeReason(size int64) string {
	return fmt.Sprintf("file too large (%d bytes), limit is %d bytes (2MB)", size, MaxUploadBytes)
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReadUploadFile loads a document from disk.
//
// Files larger than MaxUploadBytes are rejected before being read in full.
func ReadUploadFile(path string) (UploadFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return UploadFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return UploadFile{}, &FieldError{Field: "file", Reason: fmt.Sprintf("%s is a directory", path)}
	}
	if info.Size() > MaxUploadBytes {
		return UploadFile{}, &FieldError{Field: "file", Reason: tooLargeReason(info.Size())}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return UploadFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return UploadFile{Name: filepath.Base(path), Content: content}, nil
}
