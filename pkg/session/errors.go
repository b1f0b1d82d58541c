// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a submission arrives while a request is
	// pending and the policy does not allow replacing it.
	ErrBusy = errors.New("a request is already in progress")

	// ErrArchiveNotFound is returned by Restore for an unknown archive id.
	ErrArchiveNotFound = errors.New("archived chat not found")
)

// ValidationError rejects user input locally. It never reaches the network
// and never changes session state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
