package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/points-ledger/internal/config"
)

// Reconciler replays player aggregates from the ledger one page at a time
type Reconciler interface {
	ReconcileBatch(ctx context.Context, offset, limit int) (visited, repaired int, err error)
}

// ReconcileWorker periodically walks every player and repairs aggregates that drifted from
// the ledger
type ReconcileWorker struct {
	reconciler Reconciler
	config     *config.ReconcileConfig
	logger     *slog.Logger
	scheduler  gocron.Scheduler
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(reconciler Reconciler, cfg *config.ReconcileConfig, logger *slog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		config:     cfg,
		logger:     logger,
	}
}

// Start schedules the reconcile pass
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	w.ctx, w.cancel = context.WithCancel(ctx)

	_, err = sched.NewJob(
		gocron.DurationJob(w.config.Interval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(w.ctx); err != nil {
				w.logger.Error("reconcile pass failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		w.cancel()
		return fmt.Errorf("scheduling reconcile job: %w", err)
	}

	sched.Start()
	w.scheduler = sched
	w.running = true
	w.logger.Info("reconcile worker started", "interval", w.config.Interval)
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}

	w.cancel()
	err := w.scheduler.Shutdown()
	w.running = false
	w.logger.Info("reconcile worker stopped")
	return err
}

// RunOnce reconciles every player and returns how many aggregates were repaired
func (w *ReconcileWorker) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	batchSize := w.config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	var visited, repaired int
	for offset := 0; ; offset += batchSize {
		n, r, err := w.reconciler.ReconcileBatch(ctx, offset, batchSize)
		visited += n
		repaired += r
		if err != nil {
			return repaired, err
		}
		if n < batchSize {
			break
		}
	}

	w.logger.Info("reconcile pass completed",
		"duration", time.Since(start),
		"players", visited,
		"repaired", repaired,
	)
	return repaired, nil
}
