package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/inventory"
)

// fakeBackend is an in-memory durable backend with switchable failures.
type fakeBackend struct {
	mu        sync.Mutex
	quantity  int
	failReads bool
	failWrite bool
}

var errBackendDown = errors.New("backend down")

func (b *fakeBackend) GetStock(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failReads {
		return 0, errBackendDown
	}
	return b.quantity, nil
}

func (b *fakeBackend) SetStock(ctx context.Context, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWrite {
		return errBackendDown
	}
	b.quantity = quantity
	return nil
}

func TestDecrementIfPositive_NeverOversells(t *testing.T) {
	const initial = 5
	backend := &fakeBackend{quantity: initial}
	l := New(backend, initial, nil)

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.DecrementIfPositive(context.Background()); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != initial {
		t.Errorf("expected exactly %d successful decrements, got %d", initial, successes.Load())
	}
	if got := l.GetStock(context.Background()); got != 0 {
		t.Errorf("expected final stock 0, got %d", got)
	}
}

func TestDecrementIfPositive_OutOfStock(t *testing.T) {
	l := New(nil, 0, nil)

	_, err := l.DecrementIfPositive(context.Background())
	if !errors.Is(err, inventory.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if got := l.GetStock(context.Background()); got != 0 {
		t.Errorf("quantity mutated on rejected decrement: %d", got)
	}
}

func TestDecrementIfPositive_WriteFailureReservesNothing(t *testing.T) {
	backend := &fakeBackend{quantity: 3, failWrite: true}
	l := New(backend, 3, nil)

	_, err := l.DecrementIfPositive(context.Background())
	if err == nil || errors.Is(err, inventory.ErrOutOfStock) {
		t.Fatalf("expected backend fault, got %v", err)
	}
	if got := l.GetStock(context.Background()); got != 3 {
		t.Errorf("expected stock unchanged at 3, got %d", got)
	}
}

func TestGetStock_DegradesToCache(t *testing.T) {
	backend := &fakeBackend{quantity: 7}
	l := New(backend, 0, nil)

	if got := l.GetStock(context.Background()); got != 7 {
		t.Fatalf("expected 7 from backend, got %d", got)
	}

	backend.mu.Lock()
	backend.failReads = true
	backend.mu.Unlock()

	if got := l.GetStock(context.Background()); got != 7 {
		t.Errorf("expected cached 7 during outage, got %d", got)
	}
}

func TestIncrement_CacheUpdatedOnDurableFailure(t *testing.T) {
	backend := &fakeBackend{quantity: 2, failWrite: true, failReads: false}
	l := New(backend, 2, nil)

	if _, err := l.Increment(context.Background(), 1); err == nil {
		t.Fatal("expected durable-write error")
	}

	// with reads also failing the ledger must serve the compensated cache
	backend.mu.Lock()
	backend.failReads = true
	backend.mu.Unlock()

	if got := l.GetStock(context.Background()); got != 3 {
		t.Errorf("expected cache to carry the compensation (3), got %d", got)
	}
}

func TestCompensationRestoresQuantity(t *testing.T) {
	backend := &fakeBackend{quantity: 4}
	l := New(backend, 4, nil)

	if _, err := l.DecrementIfPositive(context.Background()); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if _, err := l.Increment(context.Background(), 1); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if got := l.GetStock(context.Background()); got != 4 {
		t.Errorf("expected net-zero effect, got %d", got)
	}
}
