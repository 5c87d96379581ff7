package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WarmupTarget is a cache that can be asked to refresh itself if stale
type WarmupTarget interface {
	// Name identifies the target in logs
	Name() string
	// WarmupScopes lists the scopes to check on each tick
	WarmupScopes() []string
	// Refresh queues a background refresh of scope when it is stale and
	// reports whether it did
	Refresh(ctx context.Context, scope string) (bool, error)
}

// WarmupTriggerConfig holds configuration for the warmup trigger
type WarmupTriggerConfig struct {
	// Interval is how often every target is checked
	Interval time.Duration
	// RunOnStart checks every target once right after Start
	RunOnStart bool
}

// DefaultWarmupTriggerConfig returns default warmup trigger configuration
func DefaultWarmupTriggerConfig() WarmupTriggerConfig {
	return WarmupTriggerConfig{
		Interval:   5 * time.Minute,
		RunOnStart: true,
	}
}

// Validate validates the configuration
func (c *WarmupTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: warmup interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// TickSummary describes one pass over the targets
type TickSummary struct {
	Checked int
	Queued  int
	Failed  int
}

// WarmupTrigger periodically asks every target to refresh stale scopes, so
// readers rarely meet a cold cache.
type WarmupTrigger struct {
	config  WarmupTriggerConfig
	targets []WarmupTarget
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastTick  time.Time
}

// NewWarmupTrigger creates a new warmup trigger
func NewWarmupTrigger(config WarmupTriggerConfig, targets []WarmupTarget, logger *zap.Logger) (*WarmupTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarmupTrigger{
		config:  config,
		targets: targets,
		logger:  logger.Named("warmup"),
	}, nil
}

// Start starts the trigger loop
func (w *WarmupTrigger) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.runLoop(ctx)

	w.logger.Info("Warmup trigger started",
		zap.Duration("interval", w.config.Interval),
		zap.Int("targets", len(w.targets)),
	)
	return nil
}

// Stop stops the trigger loop
func (w *WarmupTrigger) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Warmup trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastTick returns when the targets were last checked
func (w *WarmupTrigger) LastTick() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastTick
}

func (w *WarmupTrigger) runLoop(ctx context.Context) {
	defer w.wg.Done()

	if w.config.RunOnStart {
		w.Tick(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick checks every scope of every target once
func (w *WarmupTrigger) Tick(ctx context.Context) TickSummary {
	var summary TickSummary

	for _, target := range w.targets {
		for _, scope := range target.WarmupScopes() {
			if ctx.Err() != nil {
				return summary
			}
			summary.Checked++

			queued, err := target.Refresh(ctx, scope)
			if err != nil {
				summary.Failed++
				w.logger.Warn("Warmup refresh failed",
					zap.String("target", target.Name()),
					zap.String("scope", scope),
					zap.Error(err),
				)
				continue
			}
			if queued {
				summary.Queued++
			}
		}
	}

	w.mu.Lock()
	w.lastTick = time.Now()
	w.mu.Unlock()

	if summary.Queued > 0 || summary.Failed > 0 {
		w.logger.Info("Warmup pass finished",
			zap.Int("checked", summary.Checked),
			zap.Int("queued", summary.Queued),
			zap.Int("failed", summary.Failed),
		)
	}
	return summary
}
