// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the ClauseSense CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ClauseSense palette: ink blues with a parchment accent.
var (
	ColorInkBright = lipgloss.Color("#5B8DEF") // highlights, prompts
	ColorInkDeep   = lipgloss.Color("#2A4E96") // borders
	ColorParchment = lipgloss.Color("#E8D9B5") // assistant label
	ColorSlate     = lipgloss.Color("#6B7785") // muted text

	ColorSuccess = lipgloss.Color("#3CC48A")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style

	Box lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorInkBright),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorInkBright).Bold(true),
	User:      lipgloss.NewStyle().Foreground(ColorInkBright).Bold(true),
	Assistant: lipgloss.NewStyle().Foreground(ColorParchment).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorInkDeep).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess  Icon = "✓"
	IconWarning  Icon = "⚠"
	IconError    Icon = "✗"
	IconDocument Icon = "📄"
	IconScales   Icon = "⚖"
)

// Render returns the icon with its semantic color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes personality-aware status lines. Machine-mode warnings and
// errors go to Err so stdout stays parseable.
type Printer struct {
	Out         io.Writer
	Err         io.Writer
	Personality PersonalityLevel
}

// NewPrinter returns a Printer on stdout/stderr using the current
// personality.
func NewPrinter() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr, Personality: GetPersonality().Level}
}

func (p *Printer) machine() bool { return p.Personality == PersonalityMachine }

// Title prints a styled title. Silent in machine mode.
func (p *Printer) Title(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Title.Render(text))
}

// Success prints text with a check mark.
func (p *Printer) Success(text string) {
	switch p.Personality {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning.
func (p *Printer) Warning(text string) {
	switch p.Personality {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error.
func (p *Printer) Error(text string) {
	switch p.Personality {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.machine() {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text. Silent in machine mode.
func (p *Printer) Muted(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Muted.Render(text))
}

// Box prints content in a rounded box under a title.
func (p *Printer) Box(title, content string) {
	if p.machine() {
		fmt.Fprintf(p.Out, "%s: %s\n", title, strings.ReplaceAll(content, "\n", " "))
		return
	}
	fmt.Fprintln(p.Out, Styles.Box.Width(64).Render(Styles.Title.Render(title)+"\n"+content))
}

// Package-level helpers print through a Printer on stdout/stderr.

func Warning(text string) { NewPrinter().Warning(text) }
func Error(text string)   { NewPrinter().Error(text) }
