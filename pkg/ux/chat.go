// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/clausesense/clausesense/pkg/datatypes"
)

// HeaderConfig describes the chat session shown in the header.
//
// # Fields
//
//   - SessionID: active session id.
//   - APIURL: backend base URL.
//   - Documents: attached file names; empty means general mode.
type HeaderConfig struct {
	SessionID string
	APIURL    string
	Documents []string
}

// SessionStats summarizes a finished interactive run.
type SessionStats struct {
	SessionID string
	Messages  int
	Documents int
	Archived  int
	Duration  time.Duration
}

// ChatUI renders chat elements. Implementations adapt to the personality
// level; machine mode emits one prefixed line per element.
type ChatUI interface {
	// Header displays the session banner.
	Header(config HeaderConfig)

	// Prompt returns the styled input prompt.
	Prompt() string

	// Message renders one message. Assistant messages include the model
	// label and sources when present.
	Message(m datatypes.Message)

	// Notice renders a short client-side status line.
	Notice(text string)

	// Success renders a completed client-side step, such as an attachment.
	Success(text string)

	// Error renders a client-side error (validation, busy, IO).
	Error(err error)

	// Documents lists the files attached to the session.
	Documents(fileNames []string)

	// History lists archived chats, numbered from 1, most recent first.
	History(entries []datatypes.ArchivedChat)

	// Archive prints one archived chat: a summary box, then its messages.
	Archive(entry datatypes.ArchivedChat)

	// Help lists the slash commands.
	Help()

	// SessionEnd prints the goodbye summary.
	SessionEnd(stats SessionStats)
}

// terminalChatUI implements ChatUI for terminal output
type terminalChatUI struct {
	writer      io.Writer
	personality PersonalityLevel
	now         func() time.Time
}

// write ignores errors; there is no recovery for a broken terminal.
func (u *terminalChatUI) write(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(u.writer, format, args...)
}

func (u *terminalChatUI) writeln(args ...interface{}) {
	_, _ = fmt.Fprintln(u.writer, args...)
}

// printer shares the UI writer for both streams so chat output stays in
// order.
func (u *terminalChatUI) printer() *Printer {
	return &Printer{Out: u.writer, Err: u.writer, Personality: u.personality}
}

// NewChatUI creates a ChatUI on stdout with the current personality.
func NewChatUI() ChatUI {
	return NewChatUIWithWriter(os.Stdout, GetPersonality().Level)
}

// NewChatUIWithWriter creates a ChatUI with a custom writer (for testing)
func NewChatUIWithWriter(w io.Writer, personality PersonalityLevel) ChatUI {
	return &terminalChatUI{writer: w, personality: personality, now: time.Now}
}

// ===== Header =====

func (u *terminalChatUI) Header(config HeaderConfig) {
	switch u.personality {
	case PersonalityMachine:
		parts := []string{"session=" + config.SessionID}
		if config.APIURL != "" {
			parts = append(parts, "api="+config.APIURL)
		}
		if len(config.Documents) > 0 {
			parts = append(parts, "documents="+strings.Join(config.Documents, ","))
		} else {
			parts = append(parts, "mode=general")
		}
		u.write("CHAT_START: %s\n", strings.Join(parts, " "))
	case PersonalityMinimal:
		if len(config.Documents) > 0 {
			u.printer().Title(fmt.Sprintf("ClauseSense chat (%s)", strings.Join(config.Documents, ", ")))
		} else {
			u.printer().Title("ClauseSense chat (general mode)")
		}
		u.writeln("Type 'exit' to end, '/help' for commands.")
	default:
		var content strings.Builder
		content.WriteString(Styles.Highlight.Render(string(IconScales) + " ClauseSense Legal Advisor"))
		content.WriteString("\n")
		if len(config.Documents) > 0 {
			content.WriteString(fmt.Sprintf("Documents: %s", Styles.Success.Render(strings.Join(config.Documents, ", "))))
		} else {
			content.WriteString(Styles.Muted.Render("General mode (no document attached)"))
		}
		if config.APIURL != "" {
			content.WriteString("\n")
			content.WriteString(fmt.Sprintf("Backend: %s", Styles.Muted.Render(config.APIURL)))
		}
		if config.SessionID != "" {
			content.WriteString("\n")
			content.WriteString(fmt.Sprintf("Session: %s", Styles.Muted.Render(config.SessionID)))
		}
		u.writeln(Styles.Box.Width(64).Render(content.String()))
		u.writeln()
		u.printer().Muted("Type 'exit' to end, '/help' for commands, Ctrl-C to stop a pending answer.")
		u.writeln()
	}
}

func (u *terminalChatUI) Prompt() string {
	if u.personality == PersonalityMachine {
		return "> "
	}
	return Styles.Highlight.Render("> ")
}

// ===== Messages =====

func (u *terminalChatUI) Message(m datatypes.Message) {
	if u.personality == PersonalityMachine {
		prefix := "RESPONSE"
		switch {
		case m.Role == datatypes.RoleUser:
			prefix = "USER"
		case m.Transient:
			prefix = "PROGRESS"
		case strings.HasPrefix(m.Text, "Error: "):
			prefix = "ERROR"
		}
		u.write("%s: %s\n", prefix, strings.ReplaceAll(m.Text, "\n", "\\n"))
		if m.ModelLabel != "" {
			u.write("MODEL: %s\n", m.ModelLabel)
		}
		for _, src := range m.Sources {
			u.write("SOURCE: %s\n", src)
		}
		return
	}

	if m.Role == datatypes.RoleUser {
		u.write("%s %s\n", Styles.User.Render("You:"), m.Text)
		return
	}
	if m.Transient {
		u.writeln(Styles.Muted.Render(m.Text))
		return
	}

	label := "ClauseSense"
	if m.ModelLabel != "" && u.personality != PersonalityMinimal {
		label += " " + Styles.Muted.Render("("+m.ModelLabel+")")
	}
	u.writeln()
	u.write("%s\n", Styles.Assistant.Render(label))
	if strings.HasPrefix(m.Text, "Error: ") {
		u.writeln(Styles.Error.Render(m.Text))
	} else {
		u.writeln(m.Text)
	}
	u.sources(m.Sources)
	u.writeln()
}

func (u *terminalChatUI) sources(sources []string) {
	if len(sources) == 0 {
		return
	}
	if u.personality == PersonalityMinimal {
		u.write("Sources: %s\n", strings.Join(sources, ", "))
		return
	}
	u.writeln(Styles.Muted.Render("Sources:"))
	for i, src := range sources {
		u.write("  %s %s\n", Styles.Muted.Render(fmt.Sprintf("%d.", i+1)), src)
	}
}

func (u *terminalChatUI) Notice(text string) {
	if u.personality == PersonalityMachine {
		u.write("NOTICE: %s\n", text)
		return
	}
	u.printer().Info(text)
}

func (u *terminalChatUI) Success(text string) {
	u.printer().Success(text)
}

func (u *terminalChatUI) Error(err error) {
	if err == nil {
		return
	}
	u.printer().Error(err.Error())
}

// ===== Listings =====

func (u *terminalChatUI) Documents(fileNames []string) {
	if len(fileNames) == 0 {
		if u.personality == PersonalityMachine {
			u.writeln("DOCUMENTS: none")
			return
		}
		u.printer().Muted("No documents attached; answers come from general knowledge.")
		return
	}
	for i, name := range fileNames {
		if u.personality == PersonalityMachine {
			u.write("DOCUMENT: %d\t%s\n", i+1, name)
			continue
		}
		u.write("  %s %d. %s\n", IconDocument, i+1, name)
	}
}

func (u *terminalChatUI) History(entries []datatypes.ArchivedChat) {
	if len(entries) == 0 {
		if u.personality == PersonalityMachine {
			u.writeln("HISTORY: none")
			return
		}
		u.printer().Muted("No archived chats yet. Use /new to archive the current one.")
		return
	}
	now := u.now()
	for i, e := range entries {
		if u.personality == PersonalityMachine {
			u.write("HISTORY: %d\t%s\t%s\t%d\t%d\t%s\n", i+1, e.ID, e.CreatedAt.UTC().Format(time.RFC3339),
				len(e.Messages), e.UserMessageCount(), e.Title)
			continue
		}
		u.write("  %s %s %s\n", Styles.Highlight.Render(fmt.Sprintf("%2d.", i+1)), e.Title,
			Styles.Muted.Render("("+ArchiveSummary(e, now)+")"))
	}
}

func (u *terminalChatUI) Archive(entry datatypes.ArchivedChat) {
	summary := ArchiveSummary(entry, u.now())
	if len(entry.FileNames) > 0 {
		summary += "\nDocuments: " + strings.Join(entry.FileNames, ", ")
	}
	u.printer().Box(entry.Title, summary)
	for _, m := range entry.Messages {
		u.Message(m)
	}
}

// ArchiveSummary describes an archive in one line for listings and pickers:
//
//	"4 messages, 2 questions, 3 days ago"
func ArchiveSummary(entry datatypes.ArchivedChat, now time.Time) string {
	questions := "questions"
	if entry.UserMessageCount() == 1 {
		questions = "question"
	}
	return fmt.Sprintf("%d messages, %d %s, %s", len(entry.Messages), entry.UserMessageCount(), questions,
		formatRelativeTime(entry.CreatedAt, now))
}

// helpLines lists the interactive commands.
var helpLines = [][2]string{
	{"/upload PATH", "upload and analyze a .pdf, .docx or .txt file (max 2MB)"},
	{"/docs", "list documents attached to this chat"},
	{"/new", "archive this chat and start a new one"},
	{"/history", "list archived chats"},
	{"/restore [N|ID]", "reopen an archived chat"},
	{"/help", "show this help"},
	{"exit, quit", "end the session (Ctrl-D works too)"},
}

func (u *terminalChatUI) Help() {
	for _, l := range helpLines {
		if u.personality == PersonalityMachine {
			u.write("HELP: %s\t%s\n", l[0], l[1])
			continue
		}
		u.write("  %-18s %s\n", Styles.Highlight.Render(l[0]), l[1])
	}
}

func (u *terminalChatUI) SessionEnd(stats SessionStats) {
	switch u.personality {
	case PersonalityMachine:
		u.write("CHAT_END: session=%s messages=%d documents=%d archived=%d duration_ms=%d\n",
			stats.SessionID, stats.Messages, stats.Documents, stats.Archived, stats.Duration.Milliseconds())
	case PersonalityMinimal:
		u.write("Session ended (%d messages, %s)\n", stats.Messages, formatDuration(stats.Duration))
	default:
		var content strings.Builder
		content.WriteString(Styles.Title.Render("Session ended"))
		content.WriteString(fmt.Sprintf("\nMessages:  %d", stats.Messages))
		content.WriteString(fmt.Sprintf("\nDocuments: %d", stats.Documents))
		content.WriteString(fmt.Sprintf("\nDuration:  %s", formatDuration(stats.Duration)))
		if stats.Archived > 0 {
			content.WriteString(fmt.Sprintf("\nArchived:  %d chats (see 'clausesense history')", stats.Archived))
		}
		u.writeln()
		u.writeln(Styles.Box.Width(64).Render(content.String()))
	}
}

// ===== Formatting helpers =====

// formatDuration renders a duration compactly.
//
//	formatDuration(500*time.Millisecond) // "500ms"
//	formatDuration(5*time.Second)        // "5.0s"
//	formatDuration(90*time.Second)       // "1m 30s"
//	formatDuration(2*time.Hour)          // "2h 0m"
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatRelativeTime renders t relative to now ("just now", "5 mins ago",
// "3 days ago"); anything older than a month shows the date.
func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	diff := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "min")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/(24*7)), "week")
	}
	return t.Format("Jan 2, 2006")
}
