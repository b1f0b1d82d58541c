// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sanitize normalizes raw assistant text returned by the analysis
// backend before it is shown to the user.
//
// Models routinely wrap answers in chat-template residue ("<|assistant|>"),
// echo prompt scaffolding ("Answer:", "Response:"), open with a refusal
// preamble, or embed their own "(Disclaimer: ...)" aside. Sanitize removes all
// of that and reports whether a disclaimer was present so the caller can
// reattach the canonical one.
//
// # Properties
//
//   - Pure and deterministic.
//   - Idempotent: Sanitize(Sanitize(x).Text).Text == Sanitize(x).Text.
//   - Never panics; boilerplate-only input yields "".
package sanitize

import (
	"regexp"
	"strings"
)

var (
	disclaimerPattern = regexp.MustCompile(`(?is)\(\s*disclaimer\s*:.*?\)`)

	// Order matters: role tags come first because they wrap everything else.
	leadingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*(?:<\|?\s*assistant\s*\|?>|\[\s*assistant\s*\]|assistant\s*:)`),
		regexp.MustCompile(`(?i)^\s*answer\s*:`),
		regexp.MustCompile(`(?i)^\s*response\s*:`),
		regexp.MustCompile(`(?i)^\s*i\s+apologi[sz]e\s*,?\s*but\b`),
	}

	leadingNonWord = regexp.MustCompile(`^[^\p{L}\p{N}]+`)
)

// Result is the outcome of sanitizing one response.
type Result struct {
	// Text is the cleaned response without any disclaimer.
	Text string

	// HadDisclaimer is true when the raw text carried "(Disclaimer: ...)".
	HadDisclaimer bool
}

// Sanitize cleans a raw backend response.
//
// # Description
//
// Steps, in order:
//  1. Remove every parenthetical "(Disclaimer: ...)" and remember if any existed.
//  2. Strip leading role tags, "Answer:", "Response:" and "I apologize, but"
//     until none match.
//  3. Strip a leading run of characters that are neither letters nor digits.
//  4. Trim whitespace.
//
// Steps 2 and 3 repeat until the text stops changing, otherwise input such
// as "- Answer: x" would need two passes to settle.
//
// # Examples
//
//	Sanitize("Answer: (Disclaimer: test) ") // Result{Text: "", HadDisclaimer: true}
//	Sanitize("<|assistant|> Response: The clause is void.")
//	// Result{Text: "The clause is void."}
func Sanitize(raw string) Result {
	var res Result

	text := raw
	for disclaimerPattern.MatchString(text) {
		res.HadDisclaimer = true
		text = disclaimerPattern.ReplaceAllString(text, "")
	}

	for {
		before := text
		text = stripLeadingBoilerplate(text)
		text = leadingNonWord.ReplaceAllString(text, "")
		if text == before {
			break
		}
	}

	res.Text = strings.TrimSpace(text)
	return res
}

func stripLeadingBoilerplate(text string) string {
	for {
		matched := false
		for _, p := range leadingPatterns {
			if loc := p.FindStringIndex(text); loc != nil && loc[1] > 0 {
				text = text[loc[1]:]
				matched = true
			}
		}
		if !matched {
			return text
		}
	}
}

// WithDisclaimer returns the cleaned text with the canonical disclaimer
// appended after a blank line. An empty disclaimer leaves the text unchanged;
// an empty text yields just the disclaimer.
func (r Result) WithDisclaimer(disclaimer string) string {
	disclaimer = strings.TrimSpace(disclaimer)
	if disclaimer == "" {
		return r.Text
	}
	if r.Text == "" {
		return disclaimer
	}
	return r.Text + "\n\n" + disclaimer
}
