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
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/clausesense/clausesense/pkg/datatypes"
	"github.com/clausesense/clausesense/pkg/history"
	"github.com/clausesense/clausesense/pkg/lifecycle"
	"github.com/clausesense/clausesense/pkg/session"
	"github.com/clausesense/clausesense/pkg/ux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ===== chat =====

func runChatCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(settings, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	interrupts := make(chan struct{}, 1)
	go forwardSignals(ctx, sigCh, a.controller.Busy, interrupts, cancel)

	personality := ux.GetPersonality().Level
	var input InputReader = NewStdinReader()
	var picker ArchivePicker
	if personality != ux.PersonalityMachine {
		input = NewInteractiveInputReader(settings.UI.InputHistory)
	}
	if ux.IsInteractive() {
		picker = newHuhArchivePicker()
	}

	runner := NewSessionChatRunner(SessionChatRunnerConfig{
		Controller:    a.controller,
		Input:         input,
		UI:            ux.NewChatUI(),
		Out:           cmd.OutOrStdout(),
		Personality:   personality,
		Progress:      ux.ShouldShowProgress(),
		Interrupts:    interrupts,
		Picker:        picker,
		InitialFiles:  args,
		ArchiveOnExit: true,
		APIURL:        a.client.BaseURL(),
		Logger:        a.logger.Slog(),
	})
	defer func() {
		if err := runner.Close(); err != nil {
			ux.Warning(err.Error())
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if settings.Observability.MetricsAddr != "" {
		ms, err := newMetricsServer(settings.Observability.MetricsAddr, a.registry, a.logger.Slog())
		if err != nil {
			return err
		}
		g.Go(func() error { return ms.Serve(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		err := runner.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// forwardSignals turns SIGINT into a stop request while the session is
// busy. Any other signal, or SIGINT while idle, cancels the run.
func forwardSignals(ctx context.Context, sigCh <-chan os.Signal, busy func() bool, interrupts chan<- struct{}, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			if sig == syscall.SIGINT && busy() {
				select {
				case interrupts <- struct{}{}:
				default:
				}
				continue
			}
			cancel()
			return
		}
	}
}

// ===== ask =====

func runAskCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(settings, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return ask(ctx, a.controller, ux.NewChatUI(), strings.Join(args, " "), askFiles, datatypes.ReadUploadFile)
}

// ask uploads files, then sends question and renders the reply. Each upload
// triggers its analysis; only the final answer is shown.
func ask(ctx context.Context, ctrl *session.Controller, ui ux.ChatUI, question string, files []string,
	readFile func(string) (datatypes.UploadFile, error)) error {
	for _, path := range files {
		file, err := readFile(path)
		if err != nil {
			return err
		}
		reply, err := ctrl.Upload(ctx, file)
		if err != nil {
			return askFailure(ctx, ui, reply, err)
		}
		ui.Success(fmt.Sprintf("Attached %s.", file.Name))
	}

	reply, err := ctrl.Send(ctx, question)
	if err != nil {
		return askFailure(ctx, ui, reply, err)
	}
	ui.Message(*reply)
	return nil
}

func askFailure(ctx context.Context, ui ux.ChatUI, reply *datatypes.Message, err error) error {
	if errors.Is(err, lifecycle.ErrCancelled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if reply != nil {
		ui.Message(*reply)
	}
	return err
}

// ===== history =====

func runHistoryCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(settings, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	arg := ""
	if len(args) == 1 {
		arg = args[0]
	}
	return showHistory(a.store, ux.NewChatUI(), arg)
}

// showHistory lists archives, or prints the messages of the one arg names.
func showHistory(store *history.Store, ui ux.ChatUI, arg string) error {
	entries := store.List()
	if arg == "" {
		ui.History(entries)
		return nil
	}
	id, err := resolveArchive(entries, arg)
	if err != nil {
		return err
	}
	entry, err := store.Get(id)
	if err != nil {
		return fmt.Errorf("%w: %s", session.ErrArchiveNotFound, id)
	}
	ui.Archive(entry)
	return nil
}
