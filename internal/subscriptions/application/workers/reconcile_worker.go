package workers

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
)

// DefaultReconcileInterval is the default interval between passes.
const DefaultReconcileInterval = time.Second

// DueReconciler runs one reconciliation pass.
type DueReconciler interface {
	ReconcileDue(ctx context.Context, now time.Time) (services.ReconcileReport, error)
}

// ReconcileWorkerConfig configures the reconcile worker.
type ReconcileWorkerConfig struct {
	Interval time.Duration
}

// DefaultReconcileWorkerConfig returns the default configuration.
func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{Interval: DefaultReconcileInterval}
}

// ReconcileStats describes the worker's progress.
type ReconcileStats struct {
	Running    bool                     `json:"running"`
	Runs       int64                    `json:"runs"`
	Failures   int64                    `json:"failures"`
	LastRunAt  *time.Time               `json:"last_run_at,omitempty"`
	LastReport services.ReconcileReport `json:"last_report"`
	LastError  string                   `json:"last_error,omitempty"`
}

// ReconcileWorker periodically reconciles due subscriptions. Passes run
// sequentially, so they never overlap.
type ReconcileWorker struct {
	reconciler DueReconciler
	clock      sharedApplication.Clock
	config     ReconcileWorkerConfig
	logger     *slog.Logger
	running    atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}

	mu    sync.Mutex
	stats ReconcileStats
}

// NewReconcileWorker creates a new reconcile worker.
func NewReconcileWorker(
	reconciler DueReconciler,
	clock sharedApplication.Clock,
	config ReconcileWorkerConfig,
	logger *slog.Logger,
) *ReconcileWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileInterval
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		clock:      clock,
		config:     config,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Run starts the worker and blocks until context is cancelled or Stop() is called.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("reconcile worker started", "interval", w.config.Interval)

	// Run immediately on start
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.logger.Info("reconcile worker stopped (stop signal)")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *ReconcileWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning returns true if the worker is currently running.
func (w *ReconcileWorker) IsRunning() bool {
	return w.running.Load()
}

// RunOnce runs a single pass at the clock's current time.
func (w *ReconcileWorker) RunOnce(ctx context.Context) services.ReconcileReport {
	now := w.clock.Now()
	report, err := w.reconciler.ReconcileDue(ctx, now)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Runs++
	w.stats.LastRunAt = &now
	w.stats.LastReport = report
	w.stats.LastError = ""
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
		w.logger.Error("reconciliation pass failed", "error", err)
	}
	return report
}

// Stats returns a snapshot of the worker's progress.
func (w *ReconcileWorker) Stats() ReconcileStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.stats
	stats.Running = w.running.Load()
	return stats
}
