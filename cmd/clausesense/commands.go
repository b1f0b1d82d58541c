// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/clausesense/clausesense/cmd/clausesense/config"
	"github.com/clausesense/clausesense/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath       string
	apiURL           string
	logLevel         string
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	historyDir       string
	metricsAddr      string
	askFiles         []string

	// settings is the effective configuration: file, then environment, then flags.
	settings config.ClauseSenseConfig

	rootCmd = &cobra.Command{
		Use:   "clausesense",
		Short: "Talk to the ClauseSense legal document analysis service",
		Long: `ClauseSense uploads contracts and other legal documents to the
analysis backend and lets you ask questions about them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadSettings,
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat [FILE...]",
		Short: "Start an interactive session; files given are uploaded and analyzed first",
		RunE:  runChatCommand, // Defined in cmd_chat.go
	}

	askCmd = &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a single question, optionally about one or more documents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAskCommand, // Defined in cmd_chat.go
	}

	// --- History ---
	historyCmd = &cobra.Command{
		Use:   "history [N|ID]",
		Short: "List archived chats, or print one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistoryCommand, // Defined in cmd_chat.go
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.clausesense/clausesense.yaml)")
	flags.StringVar(&apiURL, "api-url", "", "backend base URL (env "+config.EnvAPIURL+")")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env "+config.EnvLogLevel+")")
	flags.StringVar(&personalityLevel, "personality", "", "output style: full, standard, minimal or machine (env "+config.EnvPersonality+")")
	flags.StringVar(&historyDir, "history-dir", "", "directory for persisted chat history (env "+config.EnvHistoryDir+")")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")

	askCmd.Flags().StringArrayVarP(&askFiles, "file", "f", nil, "document to upload before asking (repeatable)")

	rootCmd.AddCommand(chatCmd, askCmd, historyCmd)
}

// loadSettings resolves the configuration and the UX personality.
func loadSettings(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		settings, err = config.LoadFrom(configPath)
	} else {
		err = config.Load()
		settings = config.Global
	}
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		settings.Backend.BaseURL = apiURL
	}
	if flags.Changed("log-level") {
		settings.Logging.Level = logLevel
	}
	if flags.Changed("personality") {
		settings.UI.Personality = personalityLevel
	}
	if flags.Changed("history-dir") {
		settings.History.Dir = historyDir
		settings.History.Persist = true
	}
	if flags.Changed("metrics-addr") {
		settings.Observability.MetricsAddr = metricsAddr
	}
	if err := config.Validate(settings); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	// Initialize UX personality from flag, environment or config
	ux.InitPersonality(settings.UI.Personality)
	return nil
}
