package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PriceActivator activates approved fuel prices whose effective date has
// arrived and reports how many it activated
type PriceActivator interface {
	ActivateDue(ctx context.Context, limit int) (int, error)
}

// PriceActivationConfig holds configuration for the price activation worker
type PriceActivationConfig struct {
	PollInterval time.Duration
	BatchSize    int
	RunTimeout   time.Duration
}

// DefaultPriceActivationConfig returns default configuration
func DefaultPriceActivationConfig() PriceActivationConfig {
	return PriceActivationConfig{
		PollInterval: time.Minute,
		BatchSize:    50,
		RunTimeout:   30 * time.Second,
	}
}

// PriceActivationWorker periodically switches approved fuel prices live
// once their effective date is reached
type PriceActivationWorker struct {
	config    PriceActivationConfig
	activator PriceActivator
	logger    *zap.Logger

	mu             sync.RWMutex
	cancel         context.CancelFunc
	done           chan struct{}
	isRunning      bool
	lastRun        time.Time
	activatedCount int
	failedRuns     int
	lastError      error
}

// NewPriceActivationWorker creates a new price activation worker
func NewPriceActivationWorker(config PriceActivationConfig, activator PriceActivator, logger *zap.Logger) *PriceActivationWorker {
	defaults := DefaultPriceActivationConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}

	return &PriceActivationWorker{
		config:    config,
		activator: activator,
		logger:    logger,
	}
}

// Start runs one activation pass immediately and then polls in background
func (w *PriceActivationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("price activation worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	done := make(chan struct{})
	w.done = done
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("PriceActivationWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(loopCtx, done)
	return nil
}

// Stop cancels the polling loop and waits for the current pass to finish
func (w *PriceActivationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("PriceActivationWorker stopped",
		zap.Int("activated_count", stats.Activated),
		zap.Int("failed_runs", stats.FailedRuns))
	return nil
}

// Name returns the worker name for identification
func (w *PriceActivationWorker) Name() string {
	return "PriceActivationWorker"
}

func (w *PriceActivationWorker) pollLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.logger.Debug("Price activation loop cancelled")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single activation pass
func (w *PriceActivationWorker) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	n, err := w.activator.ActivateDue(runCtx, w.config.BatchSize)

	w.mu.Lock()
	w.lastRun = time.Now()
	w.activatedCount += n
	if err != nil {
		w.failedRuns++
		w.lastError = err
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Price activation pass failed", zap.Int("activated", n), zap.Error(err))
		return n
	}
	if n > 0 {
		w.logger.Info("Fuel prices activated", zap.Int("count", n))
	}
	return n
}

// PriceActivationStats is a snapshot of the worker counters
type PriceActivationStats struct {
	Running    bool      `json:"running"`
	LastRun    time.Time `json:"lastRun"`
	Activated  int       `json:"activated"`
	FailedRuns int       `json:"failedRuns"`
	LastError  string    `json:"lastError,omitempty"`
}

// Stats returns the worker counters
func (w *PriceActivationWorker) Stats() PriceActivationStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := PriceActivationStats{
		Running:    w.isRunning,
		LastRun:    w.lastRun,
		Activated:  w.activatedCount,
		FailedRuns: w.failedRuns,
	}
	if w.lastError != nil {
		stats.LastError = w.lastError.Error()
	}
	return stats
}
