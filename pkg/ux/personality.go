// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityEnv overrides the detected personality level.
const PersonalityEnv = "CLAUSESENSE_PERSONALITY"

// PersonalityLevel defines the verbosity and richness of CLI output
type PersonalityLevel string

const (
	// PersonalityFull enables boxes, colors, icons and tips
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and icons without tips
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons and basic formatting only
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs plain text suitable for scripting and parsing
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the current UX personality configuration
type Personality struct {
	Level PersonalityLevel

	// ShowTips prints slash-command hints after the header.
	ShowTips bool
}

var (
	currentPersonality = DefaultPersonality()
	personalityMu      sync.RWMutex
)

// DefaultPersonality returns the default personality settings
func DefaultPersonality() Personality {
	return Personality{Level: PersonalityFull, ShowTips: true}
}

// GetPersonality returns the current personality settings
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality replaces the current personality settings
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel updates just the level. Tips follow the level.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
	currentPersonality.ShowTips = level == PersonalityFull
}

// ParsePersonalityLevel converts a string to PersonalityLevel.
// Unknown values map to standard.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the level: explicit (flag or config) first, then
// $CLAUSESENSE_PERSONALITY, then machine when stdout is not a terminal,
// else full.
func InitPersonality(explicit string) {
	switch {
	case explicit != "":
		SetPersonalityLevel(ParsePersonalityLevel(explicit))
	case os.Getenv(PersonalityEnv) != "":
		SetPersonalityLevel(ParsePersonalityLevel(os.Getenv(PersonalityEnv)))
	case !IsTerminal(os.Stdout.Fd()):
		SetPersonalityLevel(PersonalityMachine)
	default:
		SetPersonalityLevel(PersonalityFull)
	}
}

// IsTerminal reports whether fd is a terminal (including Cygwin/MSYS ptys).
func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive reports whether prompts and pickers may be shown.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine &&
		IsTerminal(os.Stdin.Fd()) && IsTerminal(os.Stdout.Fd())
}

// ShouldShowProgress reports whether spinners should animate. An explicit
// personality can keep styling on while stdout is redirected; animation
// frames would only litter the file, so they also require a terminal.
func ShouldShowProgress() bool {
	return GetPersonality().Level != PersonalityMachine && IsTerminal(os.Stdout.Fd())
}
