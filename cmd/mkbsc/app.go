// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianEpistemic/pkg/logging"
	"github.com/AleutianAI/AleutianEpistemic/pkg/ux"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/config"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/parser"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/pipeline"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/storage/badger"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/telemetry"
)

// errCacheDisabled is returned by cache commands without a configured cache.
var errCacheDisabled = errors.New("iterate cache is disabled; pass --cache-dir or set cache.enabled")

// app holds everything one command invocation needs.
type app struct {
	cfg     config.Config
	runID   string
	logger  *logging.Logger
	log     *slog.Logger
	status  *ux.Printer
	mode    ux.Mode
	store   *badger.GameStore
	runner  *pipeline.Runner
	closers []func(context.Context) error
}

// newApp loads configuration and wires logging, telemetry and the cache.
//
// Priority is flags > environment > config file > defaults. The returned
// app must be closed.
func newApp(cmd *cobra.Command, g *globalFlags) (a *app, err error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = g.logLevel
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Enabled = true
		cfg.Cache.Dir = g.cacheDir
		cfg.Cache.InMemory = false
	}
	if g.noCache {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: cfg.Telemetry.ServiceName,
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})

	a = &app{
		cfg:    cfg,
		runID:  uuid.NewString(),
		logger: logger,
	}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()
	a.log = logger.Slog().With(slog.String("run_id", a.runID))
	slog.SetDefault(a.log)

	a.mode = ux.ParseMode(g.uxMode).Resolve(fileOf(cmd.ErrOrStderr()))
	a.status = ux.NewPrinter(cmd.ErrOrStderr(), a.mode)

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   true,
		MetricsFile:    cfg.Telemetry.MetricsFile,
	})
	if err != nil {
		return a, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	metrics, err := telemetry.NewMetrics(otel.Meter("aleutian.epistemic.cli"))
	if err != nil {
		return a, err
	}

	opts := []pipeline.Option{pipeline.WithMetrics(metrics), pipeline.WithLogger(a.log)}
	if cfg.Cache.Enabled {
		dbCfg := badger.DefaultConfig(cfg.Cache.Dir)
		dbCfg.InMemory = cfg.Cache.InMemory
		dbCfg.Logger = a.log.With(slog.String("component", "badger"))
		db, err := badger.Open(dbCfg)
		if err != nil {
			return a, fmt.Errorf("open iterate cache: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		a.store = badger.NewGameStore(db)
		opts = append(opts, pipeline.WithStore(a.store))
	}
	a.runner = pipeline.NewRunner(opts...)

	a.log.Debug("run started",
		slog.String("command", cmd.Name()),
		slog.Bool("cache", cfg.Cache.Enabled),
	)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := a.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// run wraps a command body with app setup and teardown.
func run(g *globalFlags, body func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, g)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(context.WithoutCancel(cmd.Context())); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return body(cmd.Context(), a, cmd, args)
	}
}

// loadGame parses a game description file.
func loadGame(path string) (*parser.Description, error) {
	desc, err := parser.New(nil).ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// resultPrinter returns a printer for results written to w.
func (a *app) resultPrinter(w io.Writer) *ux.Printer {
	mode := a.mode
	if f := fileOf(w); f == nil || !ux.IsTerminal(f) {
		if mode == ux.ModeStyled {
			mode = ux.ModePlain
		}
	}
	return ux.NewPrinter(w, mode)
}

func fileOf(w io.Writer) *os.File {
	f, _ := w.(*os.File)
	return f
}
