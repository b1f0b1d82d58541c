// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read.
const (
	EnvAPIURL      = "CLAUSESENSE_API_URL"
	EnvPersonality = "CLAUSESENSE_PERSONALITY"
	EnvLogLevel    = "CLAUSESENSE_LOG_LEVEL"
	EnvHistoryDir  = "CLAUSESENSE_HISTORY_DIR"
)

var (
	// Global is a singleton instance
	Global ClauseSenseConfig
	once   sync.Once

	// Notices receives the first-run message. Tests silence it.
	Notices io.Writer = os.Stderr
)

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		var path string
		path, err = DefaultPath()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path)
	})
	return err
}

// DefaultPath returns ~/.clausesense/clausesense.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".clausesense", "clausesense.yaml"), nil
}

// LoadFrom reads the config at path, creating it with defaults when it does
// not exist, then applies environment overrides and validates the result.
// Keys missing from the file keep their default values.
func LoadFrom(configPath string) (ClauseSenseConfig, error) {
	// create it if it doesn't exist
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(Notices, " First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return ClauseSenseConfig{}, err
		}
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return ClauseSenseConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ClauseSenseConfig{}, fmt.Errorf("failed to parse the config file %s: %w", configPath, err)
	}
	ApplyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return ClauseSenseConfig{}, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from CLAUSESENSE_* environment variables. Empty
// values are ignored.
func ApplyEnv(cfg *ClauseSenseConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPersonality)); v != "" {
		cfg.UI.Personality = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDir)); v != "" {
		cfg.History.Dir = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func Validate(cfg ClauseSenseConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
