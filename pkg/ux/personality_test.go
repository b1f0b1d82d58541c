// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"F", PersonalityFull},
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{" min ", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"", PersonalityStandard},
		{"loud", PersonalityStandard},
	}
	for _, tt := range tests {
		if got := ParsePersonalityLevel(tt.in); got != tt.want {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitPersonality_Precedence(t *testing.T) {
	defer SetPersonality(GetPersonality())

	t.Setenv(PersonalityEnv, "minimal")

	InitPersonality("machine")
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("explicit level ignored: %v", got)
	}

	InitPersonality("")
	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("env level ignored: %v", got)
	}
}

func TestInitPersonality_NonTerminalFallsBackToMachine(t *testing.T) {
	defer SetPersonality(GetPersonality())
	t.Setenv(PersonalityEnv, "")

	InitPersonality("")
	// go test does not attach stdout to a terminal.
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("level = %v, want machine", got)
	}
	if ShouldShowProgress() {
		t.Error("progress must be off in machine mode")
	}
	if IsInteractive() {
		t.Error("machine mode must not be interactive")
	}
}

func TestShouldShowProgress_RequiresTerminal(t *testing.T) {
	defer SetPersonality(GetPersonality())

	SetPersonalityLevel(PersonalityFull)
	// go test does not attach stdout to a terminal.
	if ShouldShowProgress() {
		t.Error("progress must not animate into a redirected stdout")
	}
}

func TestSetPersonalityLevel_TipsFollowLevel(t *testing.T) {
	defer SetPersonality(GetPersonality())

	SetPersonalityLevel(PersonalityFull)
	if !GetPersonality().ShowTips {
		t.Error("full level should show tips")
	}
	SetPersonalityLevel(PersonalityStandard)
	if GetPersonality().ShowTips {
		t.Error("standard level should hide tips")
	}
}

func TestDefaultPersonality(t *testing.T) {
	p := DefaultPersonality()
	if p.Level != PersonalityFull || !p.ShowTips {
		t.Errorf("DefaultPersonality() = %+v", p)
	}
}
