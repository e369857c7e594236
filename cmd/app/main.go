package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"IndiCache/internal/di"
	"IndiCache/internal/engine"
	"IndiCache/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "all", "run mode: single | batch | all | status | cleanup | test")
	cohort := flag.String("cohort", "", "cohort name(s), comma separated (single, batch, cleanup)")
	symbol := flag.String("symbol", "", "symbol code (single)")
	force := flag.Bool("force-recalculate", false, "ignore cache entries and rebuild everything")
	serve := flag.Bool("serve", false, "serve the status API over HTTP (status mode)")
	maxWorkers := flag.Int("max-workers", 0, "override engine.max_workers")
	verbose := flag.Bool("verbose", false, "debug-level logging")
	quiet := flag.Bool("quiet", false, "error-level logging only")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *maxWorkers > 0 {
		cfg.Engine.MaxWorkers = *maxWorkers
	}
	switch {
	case *verbose:
		cfg.Logging.Level = "debug"
	case *quiet:
		cfg.Logging.Level = "error"
	}

	log.Printf("env=%s mode=%s source=%s storage=%s", cfg.Environment, *mode, cfg.Source.Backend, cfg.Storage.Backend)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "single":
		if *cohort == "" || *symbol == "" {
			log.Fatalf("mode single requires -cohort and -symbol")
		}
		err = app.RunSingle(ctx, *cohort, *symbol, *force)
	case "batch":
		if *cohort == "" {
			log.Fatalf("mode batch requires -cohort")
		}
		err = app.RunBatch(ctx, splitList(*cohort), *force)
	case "all":
		err = app.RunAll(ctx, *force)
	case "status":
		err = app.RunStatus(ctx, splitList(*cohort), *serve)
	case "cleanup":
		err = app.RunCleanup(ctx, *cohort)
	case "test":
		err = app.RunSelfTest()
	default:
		log.Fatalf("unknown mode %q", *mode)
	}

	if err != nil {
		if errors.Is(err, engine.ErrFailureCeiling) {
			log.Printf("run degraded: %v", err)
			os.Exit(2)
		}
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
