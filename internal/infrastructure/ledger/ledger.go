// Package ledger owns the per-product stock counter. Every read and mutation
// is serialized through one mutex so two concurrent checkouts can never act
// on the same pre-decrement value.
package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/inventory"
)

// Backend is the durable home of the counter. Implemented by the postgres
// store; nil when no durable backend is configured.
type Backend interface {
	GetStock(ctx context.Context) (int, error)
	SetStock(ctx context.Context, quantity int) error
}

// Ledger keeps a local cached quantity alongside the durable backend. The
// cache is the fallback when the backend is unreachable and is updated on
// every successful operation, so reads never fail.
type Ledger struct {
	mu      sync.Mutex
	backend Backend
	cached  int
	log     *zap.Logger
}

func New(backend Backend, initial int, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		backend: backend,
		cached:  initial,
		log:     logger.With(zap.String("component", "stock_ledger")),
	}
}

// GetStock returns the current quantity. Backend failures degrade to the
// cached value and are logged, never surfaced.
func (l *Ledger) GetStock(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

// SetStock overwrites the counter (admin restock). The cache is updated even
// when the durable write fails so the process keeps a consistent view.
func (l *Ledger) SetStock(ctx context.Context, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(ctx, quantity)
}

// DecrementIfPositive atomically reserves one unit. Returns the new quantity,
// inventory.ErrOutOfStock when the counter is already at zero, or the
// backend fault when the durable write failed (nothing is reserved then).
func (l *Ledger) DecrementIfPositive(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.read(ctx)
	if current <= 0 {
		l.log.Warn("stock_decrement_rejected", zap.Int("quantity", current))
		return 0, inventory.ErrOutOfStock
	}

	next := current - 1
	if err := l.write(ctx, next); err != nil {
		return 0, err
	}
	l.log.Info("stock_decremented", zap.Int("from", current), zap.Int("to", next))
	return next, nil
}

// Increment adds n units back; used as the compensating action after a failed
// order save or a canceled payment. A durable-write failure is logged and
// reported, but the cache is updated regardless so a transient outage cannot
// leave the counter permanently under-counted.
func (l *Ledger) Increment(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		n = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.read(ctx)
	next := current + n
	if err := l.write(ctx, next); err != nil {
		l.cached = next
		l.log.Error("stock_increment_durable_write_failed",
			zap.Int("from", current),
			zap.Int("to", next),
			zap.Error(err),
		)
		return 0, err
	}
	l.log.Info("stock_incremented", zap.Int("from", current), zap.Int("to", next))
	return next, nil
}

// read must be called with the mutex held.
func (l *Ledger) read(ctx context.Context) int {
	if l.backend == nil {
		return l.cached
	}
	quantity, err := l.backend.GetStock(ctx)
	if err != nil {
		l.log.Warn("stock_read_degraded_to_cache",
			zap.Int("cached", l.cached),
			zap.Error(err),
		)
		return l.cached
	}
	l.cached = quantity
	return quantity
}

// write must be called with the mutex held.
func (l *Ledger) write(ctx context.Context, quantity int) error {
	if l.backend == nil {
		l.cached = quantity
		return nil
	}
	if err := l.backend.SetStock(ctx, quantity); err != nil {
		return err
	}
	l.cached = quantity
	return nil
}
