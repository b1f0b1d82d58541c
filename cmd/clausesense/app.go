// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/clausesense/clausesense/cmd/clausesense/config"
	"github.com/clausesense/clausesense/pkg/backend"
	"github.com/clausesense/clausesense/pkg/history"
	"github.com/clausesense/clausesense/pkg/lifecycle"
	"github.com/clausesense/clausesense/pkg/logging"
	"github.com/clausesense/clausesense/pkg/observability"
	"github.com/clausesense/clausesense/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// appOptions overrides process-level collaborators. Tests use it.
type appOptions struct {
	HTTPClient *http.Client
	LogOutput  io.Writer
}

// app owns everything a command needs, built once from the config.
type app struct {
	cfg        config.ClauseSenseConfig
	logger     *logging.Logger
	registry   *prometheus.Registry
	metrics    *observability.ClientMetrics
	client     *backend.Client
	manager    *lifecycle.Manager
	store      *history.Store
	controller *session.Controller

	shutdownTracing observability.ShutdownFunc
}

// newApp wires logging, tracing, metrics, the backend client, the history
// store and the session controller.
//
// # Outputs
//
//   - *app: ready to use; the caller must Close it.
//   - error: invalid log level, tracing or history setup failure.
func newApp(cfg config.ClauseSenseConfig, opts appOptions) (*app, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:  level,
		LogDir: cfg.Logging.Dir,
		JSON:   cfg.Logging.JSON,
		Output: opts.LogOutput,
	})
	logger.Install()
	log := logger.Slog()

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		Enabled: cfg.Observability.Tracing,
		File:    logging.ExpandHome(cfg.Observability.TraceFile),
	})
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewClientMetrics(registry)

	client := backend.NewClient(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.ClientTimeout(),
		HTTPClient: opts.HTTPClient,
		Logger:     log,
	})
	manager := lifecycle.NewManager(client,
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(metrics),
		lifecycle.WithRateLimit(cfg.Backend.RateLimitPerMinute, cfg.Backend.RateLimitBurst),
	)

	store, err := openHistory(cfg.History, log)
	if err != nil {
		_ = shutdownTracing(context.Background())
		_ = logger.Close()
		return nil, err
	}

	policy := session.ConcurrentPolicyReject
	if cfg.Session.ConcurrentPolicy == "replace" {
		policy = session.ConcurrentPolicyReplace
	}
	controller := session.NewController(manager, store, session.Config{
		AppendDisclaimerInGeneralMode: cfg.Session.AppendDisclaimerInGeneralMode,
		ConcurrentPolicy:              policy,
		TitleMaxLength:                cfg.Session.TitleMaxLength,
		Logger:                        log,
		Metrics:                       metrics,
	})

	log.Debug("clausesense initialized",
		"api_url", client.BaseURL(),
		"history_persisted", cfg.History.Persist,
		"archives", store.Len(),
		"log_file", logger.FilePath(),
	)

	return &app{
		cfg:             cfg,
		logger:          logger,
		registry:        registry,
		metrics:         metrics,
		client:          client,
		manager:         manager,
		store:           store,
		controller:      controller,
		shutdownTracing: shutdownTracing,
	}, nil
}

// openHistory returns a badger-backed store when persistence is enabled and
// an in-memory one otherwise.
func openHistory(cfg config.HistoryConfig, log *slog.Logger) (*history.Store, error) {
	if !cfg.Persist {
		return history.NewStore(), nil
	}
	persister, err := history.OpenBadger(history.BadgerConfig{
		Dir:    logging.ExpandHome(cfg.Dir),
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("open history at %s: %w", cfg.Dir, err)
	}
	store, err := history.Open(persister, log)
	if err != nil {
		_ = persister.Close()
		return nil, err
	}
	return store, nil
}

// Close flushes spans and releases the history database and log file.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(
		a.store.Close(),
		a.shutdownTracing(ctx),
		a.logger.Close(),
	)
}
