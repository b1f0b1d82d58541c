// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"strings"

	"github.com/clausesense/clausesense/pkg/datatypes"
)

// deriveTitle names an archive: the first attached filename, else the first
// user message cut to maxRunes with an ellipsis, else UntitledChat.
func deriveTitle(fileNames []string, messages []datatypes.Message, maxRunes int) string {
	for _, name := range fileNames {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	for _, m := range messages {
		if m.Role != datatypes.RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(m.Text), " ")
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) <= maxRunes {
			return text
		}
		return strings.TrimSpace(string(runes[:maxRunes])) + "…"
	}
	return UntitledChat
}
