package admin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/inventory"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/ledger"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/memory"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/metrics"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/retry"
)

type fakeNotifier struct {
	mu     sync.Mutex
	sent   map[int64]int
	refuse map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64]int), refuse: make(map[int64]bool)}
}

func (n *fakeNotifier) NotifyUser(_ context.Context, chatID int64, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.refuse[chatID] {
		return errors.New("blocked by user")
	}
	n.sent[chatID]++
	return nil
}

func newService(stock int, notifier *fakeNotifier) (*Service, *ledger.Ledger, *memory.Store) {
	led := ledger.New(nil, stock, nil)
	store := memory.NewStore()
	svc := New(Params{
		Ledger:     led,
		Store:      store,
		Retrier:    retry.New(retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1.5}, nil, nil),
		Notifier:   notifier,
		Thresholds: inventory.Thresholds{Low: 5, Critical: 3},
		Metrics:    metrics.New(prometheus.NewRegistry()),
	})
	return svc, led, store
}

func TestSetStock(t *testing.T) {
	svc, led, _ := newService(0, newFakeNotifier())
	ctx := context.Background()

	msgs := svc.SetStock(ctx, 99, "25")
	if !strings.Contains(msgs[0].Text, "25") {
		t.Errorf("unexpected reply: %q", msgs[0].Text)
	}
	if got := led.GetStock(ctx); got != 25 {
		t.Errorf("stock = %d, want 25", got)
	}

	msgs = svc.SetStock(ctx, 99, "2")
	if !strings.Contains(msgs[0].Text, "критический") {
		t.Errorf("expected critical-level note, got %q", msgs[0].Text)
	}

	for _, bad := range []string{"", "abc", "-1"} {
		msgs = svc.SetStock(ctx, 99, bad)
		if !strings.Contains(msgs[0].Text, "Использование") {
			t.Errorf("SetStock(%q) should show usage, got %q", bad, msgs[0].Text)
		}
	}
}

func TestStock(t *testing.T) {
	svc, _, store := newService(7, newFakeNotifier())
	ctx := context.Background()

	_ = store.AddToWaitlist(ctx, order.WaitlistEntry{Phone: "+79991234567", UserID: 1, AddedAt: time.Now()})

	msgs := svc.Stock(ctx, 99)
	if !strings.Contains(msgs[0].Text, "7 шт.") || !strings.Contains(msgs[0].Text, "листе ожидания: 1") {
		t.Errorf("unexpected reply: %q", msgs[0].Text)
	}
}

func TestNotifyWaitlistBroadcastsAndClears(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.refuse[2] = true
	svc, _, store := newService(10, notifier)
	ctx := context.Background()

	for i, phone := range []string{"+79990000001", "+79990000002", "+79990000003"} {
		_ = store.AddToWaitlist(ctx, order.WaitlistEntry{Phone: phone, UserID: int64(i + 1), AddedAt: time.Now()})
	}

	msgs, err := svc.NotifyWaitlist(ctx, 99)
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if !strings.Contains(msgs[0].Text, "2 из 3") {
		t.Errorf("expected delivery summary, got %q", msgs[0].Text)
	}
	if notifier.sent[1] != 1 || notifier.sent[3] != 1 {
		t.Errorf("reachable users must be notified: %+v", notifier.sent)
	}

	wl, _ := store.Waitlist(ctx)
	if len(wl) != 0 {
		t.Errorf("waitlist must be cleared after the broadcast, got %d entries", len(wl))
	}
}

func TestNotifyWaitlistEmpty(t *testing.T) {
	svc, _, _ := newService(10, newFakeNotifier())

	msgs, err := svc.NotifyWaitlist(context.Background(), 99)
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if !strings.Contains(msgs[0].Text, "пуст") {
		t.Errorf("unexpected reply: %q", msgs[0].Text)
	}
}
