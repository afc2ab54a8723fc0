// Package sweep finds metadata documents whose audio object is gone and
// removes them.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"looplib/internal/storage"
)

var (
	orphans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looplib_sweep_orphans_total",
			Help: "Orphaned metadata documents found, by action",
		},
		[]string{"action"},
	)
	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "looplib_sweep_runs_total",
			Help: "Total sweep runs",
		},
		[]string{"status"},
	)
	duration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "looplib_sweep_duration_seconds",
			Help:    "Sweep time",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(orphans, runs, duration)
}

// Report summarises one pass over the bucket.
type Report struct {
	Scanned int      `json:"scanned"`
	Orphans []string `json:"orphans"`
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	DryRun  bool     `json:"dryRun"`
}

type Worker struct {
	storage  *storage.Client
	interval time.Duration
	dryRun   bool
	log      *slog.Logger
}

func New(st *storage.Client, interval time.Duration, dryRun bool, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		storage:  st,
		interval: interval,
		dryRun:   dryRun,
		log:      logger.With("component", "sweep"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", w.interval)
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("sweeper started", "interval", w.interval, "dry_run", w.dryRun)
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil {
		w.log.Error("sweep failed", "error", err)
	}
}

// Sweep lists every user's objects and handles metadata documents whose
// derived audio key is absent from the same listing.
func (w *Worker) Sweep(ctx context.Context) (*Report, error) {
	timer := prometheus.NewTimer(duration)
	defer timer.ObserveDuration()

	keys, err := w.storage.List(ctx, storage.UsersRoot)
	if err != nil {
		runs.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list %s: %w", storage.UsersRoot, err)
	}

	audio := make(map[string]bool)
	var metaKeys []string
	for _, key := range keys {
		switch {
		case storage.IsAudioKey(key):
			audio[key] = true
		case storage.IsMetadataKey(key):
			metaKeys = append(metaKeys, key)
		}
	}

	report := &Report{Scanned: len(keys), DryRun: w.dryRun, Orphans: []string{}}
	for _, metaKey := range metaKeys {
		audioKey, ok := storage.AudioKeyFor(metaKey)
		if !ok {
			// Not a companion document; leave it alone.
			continue
		}
		if audio[audioKey] {
			continue
		}
		report.Orphans = append(report.Orphans, metaKey)

		if w.dryRun {
			orphans.WithLabelValues("reported").Inc()
			w.log.Info("orphaned metadata (dry run)", "key", metaKey)
			continue
		}
		if err := w.storage.Delete(ctx, metaKey); err != nil {
			report.Failed++
			orphans.WithLabelValues("delete_failed").Inc()
			w.log.Warn("error deleting orphaned metadata", "key", metaKey, "error", err)
			continue
		}
		report.Deleted++
		orphans.WithLabelValues("deleted").Inc()
	}

	runs.WithLabelValues("ok").Inc()
	w.log.Info("sweep finished",
		"scanned", report.Scanned,
		"orphans", len(report.Orphans),
		"deleted", report.Deleted,
		"failed", report.Failed,
		"dry_run", report.DryRun,
	)
	return report, nil
}
