// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clausesense/clausesense/cmd/clausesense/config"
	"github.com/clausesense/clausesense/pkg/ux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_SettingsPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvAPIURL, "http://env.example:8000")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvPersonality, "")
	t.Setenv(config.EnvHistoryDir, "")

	cfgPath := filepath.Join(home, "clausesense.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
backend:
  base_url: http://file.example:8000
logging:
  level: warn
  dir: ""
history:
  persist: false
`), 0600))
	historyPath := filepath.Join(home, "archives")

	rootCmd.SetArgs([]string{
		"--config", cfgPath,
		"--log-level", "debug",
		"--personality", "machine",
		"--history-dir", historyPath,
		"history",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "http://env.example:8000", settings.Backend.BaseURL, "environment beats the file")
	assert.Equal(t, "debug", settings.Logging.Level, "flags beat the file")
	assert.True(t, settings.History.Persist, "--history-dir turns persistence on")
	assert.Equal(t, historyPath, settings.History.Dir)
	assert.Equal(t, ux.PersonalityMachine, ux.GetPersonality().Level)
	assert.DirExists(t, historyPath)
}

func TestRootCommand_RejectsInvalidFlag(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfgPath := filepath.Join(home, "clausesense.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("history:\n  persist: false\n"), 0600))

	rootCmd.SetArgs([]string{"--config", cfgPath, "--personality", "chatty", "history"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.Execute())
}
