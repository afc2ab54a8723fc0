package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"looplib/internal/config"
	"looplib/internal/logging"
	"looplib/internal/storage"
	"looplib/internal/sweep"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	app := &cli.Command{
		Name:  "janitor",
		Usage: "Remove metadata documents whose audio file no longer exists",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep, print the report and exit",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Only report orphans (overrides sweep.dry_run)",
			},
			&cli.BoolFlag{
				Name:  "delete",
				Usage: "Delete orphans (overrides sweep.dry_run)",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Time between sweeps (overrides sweep.interval)",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatalf("janitor: %v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Load()

	logger := logging.Setup(logging.Options{
		Service:     "looplib-janitor",
		Environment: cfg.Server.Environment,
		Level:       cfg.Log.Level,
		FilePath:    cfg.Log.FilePath,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})

	dryRun := cfg.Sweep.DryRun
	switch {
	case cmd.Bool("dry-run") && cmd.Bool("delete"):
		return errors.New("--dry-run and --delete are mutually exclusive")
	case cmd.Bool("dry-run"):
		dryRun = true
	case cmd.Bool("delete"):
		dryRun = false
	}
	interval := cfg.Sweep.Interval
	if d := cmd.Duration("interval"); d > 0 {
		interval = d
	}

	store := storage.New(cfg)
	worker := sweep.New(store, interval, dryRun, logger)
	logger.Info("janitor configured", "bucket", store.Bucket(), "provider", cfg.Storage.Provider, "dry_run", dryRun)

	if cmd.Bool("once") {
		report, err := worker.Sweep(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	sweep.RegisterMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/_metrics", promhttp.Handler())
		log.Printf("Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		srv := &http.Server{Addr: cfg.Server.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	return worker.Run(ctx)
}
