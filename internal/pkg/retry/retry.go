// Package retry provides the bounded-retry policy used for every call into
// the durable order store and the stock backend.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// ErrExhausted wraps the last attempt error once the retry budget is spent.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Config controls the retry loop. Delay before attempt n (n >= 2) is
// BaseDelay * Multiplier^(n-2), i.e. 2s, 3s for the defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultConfig mirrors the production settings: 3 attempts, 2s base delay,
// 1.5 backoff multiplier.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  1.5,
	}
}

// ExhaustedFunc is invoked after the final failed attempt, typically to raise
// an operator alert. Its own failures are the caller's concern.
type ExhaustedFunc func(ctx context.Context, op string, err error)

// Executor runs operations with bounded retries and exponential backoff.
// Backoff sleeps are context-aware so a shutdown or request cancellation is
// never blocked behind a sleeping retry.
type Executor struct {
	cfg         Config
	log         *zap.Logger
	onExhausted ExhaustedFunc
}

func New(cfg Config, logger *zap.Logger, onExhausted ExhaustedFunc) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1.5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{cfg: cfg, log: logger, onExhausted: onExhausted}
}

// Do runs fn up to MaxAttempts times. Panics inside fn are converted to
// errors so a misbehaving backend client cannot take the process down.
// On exhaustion the failure callback fires and the last error is returned
// wrapped in ErrExhausted.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.backoff(attempt)
			e.log.Info("retry_backoff",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		lastErr = e.run(ctx, fn)
		if lastErr == nil {
			return nil
		}

		e.log.Warn("retry_attempt_failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.Error(lastErr),
		)
	}

	e.log.Error("retry_exhausted",
		zap.String("op", op),
		zap.Error(lastErr),
	)
	if e.onExhausted != nil {
		e.onExhausted(ctx, op, lastErr)
	}
	return fmt.Errorf("%w: %s: %w", ErrExhausted, op, lastErr)
}

func (e *Executor) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("retry: operation panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (e *Executor) backoff(attempt int) time.Duration {
	return time.Duration(float64(e.cfg.BaseDelay) * math.Pow(e.cfg.Multiplier, float64(attempt-2)))
}
