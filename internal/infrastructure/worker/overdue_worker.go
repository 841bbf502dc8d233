package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reminder raises one overdue digest per call and reports how many reports it covered
type Reminder interface {
	RemindOverdue(ctx context.Context) (int, error)
}

// OverdueWorkerConfig holds configuration for the overdue reminder worker
type OverdueWorkerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Timeout    time.Duration
}

// DefaultOverdueWorkerConfig returns default configuration
func DefaultOverdueWorkerConfig() OverdueWorkerConfig {
	return OverdueWorkerConfig{
		Interval: 24 * time.Hour,
		Timeout:  time.Minute,
	}
}

// OverdueWorker periodically sends the overdue NCR digest
type OverdueWorker struct {
	config   OverdueWorkerConfig
	reminder Reminder
	logger   *zap.Logger

	mu          sync.RWMutex
	cancel      context.CancelFunc
	done        chan struct{}
	isRunning   bool
	runs        int
	lastRun     time.Time
	lastReached int
	lastError   error
}

// NewOverdueWorker creates a new overdue reminder worker
func NewOverdueWorker(config OverdueWorkerConfig, reminder Reminder, logger *zap.Logger) *OverdueWorker {
	defaults := DefaultOverdueWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &OverdueWorker{
		config:   config,
		reminder: reminder,
		logger:   logger,
	}
}

// Start begins the ticker loop
func (w *OverdueWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("overdue worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("OverdueWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Bool("run_on_start", w.config.RunOnStart))

	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish
func (w *OverdueWorker) Stop() error {
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

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("OverdueWorker stopped", zap.Int("runs", w.runs))
	return nil
}

// Name returns the worker name for identification
func (w *OverdueWorker) Name() string {
	return "OverdueWorker"
}

// Runs returns how many reminder passes have completed
func (w *OverdueWorker) Runs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs
}

// LastError returns the error from the most recent pass, if any
func (w *OverdueWorker) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

func (w *OverdueWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.config.RunOnStart {
		w.runOnce(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *OverdueWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	count, err := w.reminder.RemindOverdue(runCtx)

	w.mu.Lock()
	w.runs++
	w.lastRun = time.Now()
	w.lastReached = count
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Overdue reminder failed", zap.Error(err))
		return
	}
	w.logger.Debug("Overdue reminder pass complete", zap.Int("overdue", count))
}
