// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/clausesense/clausesense/pkg/ux"
)

// errPickerAborted is returned when the user dismisses the picker.
var errPickerAborted = errors.New("selection aborted")

// ArchivePicker lets the user choose an archived chat.
type ArchivePicker interface {
	// Pick returns the id of the chosen entry or errPickerAborted.
	Pick(ctx context.Context, entries []datatypes.ArchivedChat) (string, error)
}

// huhArchivePicker shows a select form on the terminal.
type huhArchivePicker struct {
	now func() time.Time
}

func newHuhArchivePicker() *huhArchivePicker {
	return &huhArchivePicker{now: time.Now}
}

func (p *huhArchivePicker) Pick(ctx context.Context, entries []datatypes.ArchivedChat) (string, error) {
	if len(entries) == 0 {
		return "", errPickerAborted
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Restore an archived chat").
				Options(archiveOptions(entries, p.now())...).
				Value(&choice),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			return "", errPickerAborted
		}
		return "", fmt.Errorf("archive picker: %w", err)
	}
	return choice, nil
}

// archiveOptions labels entries for the picker, most recent first.
func archiveOptions(entries []datatypes.ArchivedChat, now time.Time) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(entries))
	for i, e := range entries {
		label := fmt.Sprintf("%2d. %s (%s)", i+1, e.Title, ux.ArchiveSummary(e, now))
		opts = append(opts, huh.NewOption(label, e.ID))
	}
	return opts
}
