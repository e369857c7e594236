// Package server wires the engine, stores and HTTP surface into one
// application lifecycle driven by the CLI modes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"IndiCache/internal/engine"
	"IndiCache/internal/indicator"
	"IndiCache/pkg/config"
	xhttp "IndiCache/pkg/http"
	applogger "IndiCache/pkg/logger"
)

// App encapsulates the application lifecycle across all run modes.
type App struct {
	cfg     *config.Config
	log     *applogger.Logger
	batch   *engine.Batch
	maint   *engine.Maintainer
	plugins []indicator.Plugin

	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	closers     []func() error
}

// New assembles the application from its wired dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	batch *engine.Batch,
	maint *engine.Maintainer,
	plugins []indicator.Plugin,
) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		batch:   batch,
		maint:   maint,
		plugins: plugins,
	}
}

// SetHTTPHandler allows DI to inject the status HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// AddCloser registers a resource to release on shutdown.
func (a *App) AddCloser(fn func() error) { a.closers = append(a.closers, fn) }

// RunSingle processes one symbol within one cohort.
func (a *App) RunSingle(ctx context.Context, cohort, code string, force bool) error {
	report, err := a.batch.RunSymbol(ctx, cohort, code, a.plugins, force)
	if report != nil {
		a.printJSON(report)
	}
	return err
}

// RunBatch processes the named cohorts.
func (a *App) RunBatch(ctx context.Context, cohorts []string, force bool) error {
	report, err := a.batch.RunCohorts(ctx, cohorts, a.plugins, force)
	if report != nil {
		a.printJSON(report)
	}
	return err
}

// RunAll processes every known cohort.
func (a *App) RunAll(ctx context.Context, force bool) error {
	report, err := a.batch.RunAll(ctx, a.plugins, force)
	if report != nil {
		a.printJSON(report)
	}
	return err
}

// RunCleanup removes orphaned entries and artifacts. An empty cohort
// argument cleans every cohort.
func (a *App) RunCleanup(ctx context.Context, cohort string) error {
	families := make([]string, 0, len(a.plugins))
	for _, p := range a.plugins {
		families = append(families, p.Name())
	}

	var cohorts []string
	if cohort != "" {
		cohorts = []string{cohort}
	} else {
		report, err := a.maint.Status(ctx, nil)
		if err != nil {
			return err
		}
		for _, cm := range report.Cohorts {
			cohorts = append(cohorts, cm.Cohort)
		}
	}

	var reports []*engine.CleanupReport
	for _, c := range cohorts {
		rep, err := a.maint.Cleanup(ctx, c, families)
		if err != nil {
			return fmt.Errorf("cleanup %s: %w", c, err)
		}
		reports = append(reports, rep)
	}
	a.printJSON(reports)
	return nil
}

// RunSelfTest checks split-compute consistency for every enabled family.
func (a *App) RunSelfTest() error {
	results := engine.SelfTest(a.plugins)
	a.printJSON(results)
	for _, r := range results {
		if !r.Pass {
			return fmt.Errorf("self test failed: %s: %s", r.Family, r.Reason)
		}
	}
	return nil
}

// RunStatus prints the per-cohort statistics snapshot, or serves the
// read-only status API until interrupted when serve is set.
func (a *App) RunStatus(ctx context.Context, cohorts []string, serve bool) error {
	if !serve {
		report, err := a.maint.Status(ctx, cohorts)
		if err != nil {
			return err
		}
		a.printJSON(report)
		return nil
	}
	a.httpServer = xhttp.NewServer(a.httpHandler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.httpServer.Stop(shutdownCtx)
}

// Close releases every registered resource.
func (a *App) Close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}
}

func (a *App) printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		a.log.Warn("report marshal error", applogger.Error(err))
		return
	}
	fmt.Fprintln(os.Stdout, string(data))
}
