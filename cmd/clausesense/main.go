// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"os"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/clausesense/clausesense/pkg/session"
	"github.com/clausesense/clausesense/pkg/ux"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		ux.Error(err.Error())
		os.Exit(exitCode(err))
	}
}

// exitCode maps command errors to process exit status: 2 for input the
// user can fix, 1 for everything else. Upload files rejected while reading
// from disk count as user input too.
func exitCode(err error) int {
	var (
		verr *session.ValidationError
		ferr *datatypes.FieldError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &ferr):
		return 2
	case errors.Is(err, session.ErrArchiveNotFound):
		return 2
	}
	return 1
}
