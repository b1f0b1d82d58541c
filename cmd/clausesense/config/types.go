// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"time"

	"github.com/clausesense/clausesense/pkg/backend"
)

// ClauseSenseConfig is the on-disk configuration, ~/.clausesense/clausesense.yaml.
type ClauseSenseConfig struct {
	// Backend: where the analysis service lives and how hard we may hit it
	Backend BackendConfig `yaml:"backend"`

	// Session: controller policy
	Session SessionConfig `yaml:"session"`

	// History: archived chats
	History HistoryConfig `yaml:"history"`

	Logging       LoggingConfig       `yaml:"logging"`
	UI            UIConfig            `yaml:"ui"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"` // e.g. http://127.0.0.1:8000

	// Timeout per request. 0 disables the timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// RateLimitPerMinute caps outgoing requests. 0 disables the limiter.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" validate:"gte=0"`
	RateLimitBurst     int `yaml:"rate_limit_burst" validate:"gte=0"`
}

// ClientTimeout converts Timeout to the backend.Config convention, where
// zero means "use the default" and a negative value disables the timeout.
func (b BackendConfig) ClientTimeout() time.Duration {
	if b.Timeout == 0 {
		return -1
	}
	return b.Timeout
}

type SessionConfig struct {
	AppendDisclaimerInGeneralMode bool   `yaml:"append_disclaimer_in_general_mode"`
	ConcurrentPolicy              string `yaml:"concurrent_policy" validate:"omitempty,oneof=reject replace"`
	TitleMaxLength                int    `yaml:"title_max_length" validate:"gte=0,lte=200"`
}

type HistoryConfig struct {
	// Persist keeps archives in a badger database under Dir.
	Persist bool   `yaml:"persist"`
	Dir     string `yaml:"dir" validate:"required_if=Persist true"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"` // empty disables file logging
	JSON  bool   `yaml:"json"`
}

type UIConfig struct {
	// Personality is full, standard, minimal or machine. Empty picks one
	// from the terminal.
	Personality  string `yaml:"personality" validate:"omitempty,oneof=full standard minimal machine"`
	InputHistory int    `yaml:"input_history" validate:"gte=0"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	Tracing     bool   `yaml:"tracing"`
	TraceFile   string `yaml:"trace_file,omitempty"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() ClauseSenseConfig {
	return ClauseSenseConfig{
		Backend: BackendConfig{
			BaseURL:            backend.DefaultBaseURL,
			Timeout:            backend.DefaultTimeout,
			RateLimitPerMinute: 5,
			RateLimitBurst:     5,
		},
		Session: SessionConfig{
			AppendDisclaimerInGeneralMode: false,
			ConcurrentPolicy:              "reject",
			TitleMaxLength:                40,
		},
		History: HistoryConfig{
			Persist: true,
			Dir:     "~/.clausesense/history",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.clausesense/logs",
		},
		UI: UIConfig{
			Personality:  "",
			InputHistory: 50,
		},
		Observability: ObservabilityConfig{
			Tracing:   false,
			TraceFile: "~/.clausesense/traces.jsonl",
		},
	}
}
