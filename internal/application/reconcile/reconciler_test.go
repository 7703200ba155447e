package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/catalog"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/payment"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/ledger"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/pending"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/metrics"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/retry"
)

type fakeGateway struct {
	status payment.Status
	err    error
}

func (g *fakeGateway) FindPayment(context.Context, string) (payment.Status, error) {
	return g.status, g.err
}

type fakeStore struct {
	mu        sync.Mutex
	statuses  map[string]order.Status
	updateErr error
	calls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{statuses: make(map[string]order.Status)}
}

func (s *fakeStore) AddOrder(context.Context, *order.PendingOrder) error { return nil }

func (s *fakeStore) UpdateStatus(_ context.Context, paymentID string, st order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.updateErr != nil {
		return s.updateErr
	}
	s.statuses[paymentID] = st
	return nil
}

func (s *fakeStore) AddToWaitlist(context.Context, order.WaitlistEntry) error { return nil }
func (s *fakeStore) Waitlist(context.Context) ([]order.WaitlistEntry, error) { return nil, nil }
func (s *fakeStore) ClearWaitlist(context.Context) error                     { return nil }

func (s *fakeStore) statusOf(paymentID string) order.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[paymentID]
}

func (s *fakeStore) updateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeNotifier struct {
	mu    sync.Mutex
	admin []string
	users map[int64][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{users: make(map[int64][]string)}
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admin = append(n.admin, text)
	return nil
}

func (n *fakeNotifier) NotifyUser(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users[chatID] = append(n.users[chatID], text)
	return nil
}

func (n *fakeNotifier) adminContains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.admin {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func (n *fakeNotifier) userContains(chatID int64, substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.users[chatID] {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Product{
		{ID: catalog.ProductAmulet, Name: "ЭКОамулет", Price: 100000, Kind: catalog.KindPhysical, TracksStock: true},
		{ID: catalog.ProductCertKid, Name: "Сертификат «Детям»", Price: 100000, Kind: catalog.KindCertificate},
	})
}

type env struct {
	rec      *Reconciler
	store    *fakeStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	ledger   *ledger.Ledger
	pending  *pending.Store
}

func newEnv(stock int) *env {
	e := &env{
		store:    newFakeStore(),
		gateway:  &fakeGateway{status: payment.StatusSucceeded},
		notifier: newFakeNotifier(),
		ledger:   ledger.New(nil, stock, nil),
		pending:  pending.NewStore("", nil),
	}
	e.rec = New(Params{
		Catalog:  testCatalog(),
		Ledger:   e.ledger,
		Store:    e.store,
		Pending:  e.pending,
		Gateway:  e.gateway,
		Retrier:  retry.New(retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1.5}, nil, nil),
		Notifier: e.notifier,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	})
	return e
}

func pendingOrder(paymentID, productID string) *order.PendingOrder {
	address := "г. Москва, ул. Ленина, 5"
	email := ""
	if productID != catalog.ProductAmulet {
		address = order.NoDelivery
		email = "buyer@example.ru"
	}
	name := "ЭКОамулет"
	if productID == catalog.ProductCertKid {
		name = "Сертификат «Детям»"
	}
	return &order.PendingOrder{
		PaymentID:   paymentID,
		UserID:      42,
		FullName:    "Иванов Иван",
		Phone:       "+79991234567",
		Address:     address,
		Email:       email,
		ProductID:   productID,
		ProductName: name,
		Price:       100000,
		Status:      order.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func event(paymentID string, status payment.Status) Event {
	var ev Event
	ev.Type = "payment." + string(status)
	ev.Object.ID = paymentID
	ev.Object.Status = string(status)
	return ev
}

func TestSuccessfulPaymentFulfilled(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusSucceeded)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := e.store.statusOf("pay-1"); got != order.StatusPaid {
		t.Errorf("order status = %s, want paid", got)
	}
	if e.pending.Len() != 0 {
		t.Error("pending record must be removed after fulfilment")
	}
	if !e.notifier.userContains(42, "Спасибо за покупку") {
		t.Error("buyer should get a thank-you message")
	}
	if !e.notifier.adminContains("Заказ оплачен") {
		t.Error("operator should be notified about the paid order")
	}
	if got := e.ledger.GetStock(context.Background()); got != 5 {
		t.Errorf("fulfilment must not touch stock, got %d", got)
	}
}

func TestCertificateThankYouMentionsEmail(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductCertKid))

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusSucceeded)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !e.notifier.userContains(42, "ребёнку") {
		t.Error("kid-certificate thank-you should carry the program wording")
	}
	if !e.notifier.userContains(42, "buyer@example.ru") {
		t.Error("thank-you should name the delivery email")
	}
}

func TestDuplicateDeliveryIsNoOp(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))
	ev := event("pay-1", payment.StatusSucceeded)

	if err := e.rec.Handle(context.Background(), ev); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	callsAfterFirst := e.store.updateCalls()

	if err := e.rec.Handle(context.Background(), ev); err != nil {
		t.Fatalf("duplicate delivery must be acknowledged: %v", err)
	}
	if e.store.updateCalls() != callsAfterFirst {
		t.Error("duplicate delivery must not touch the store again")
	}
}

func TestStatusMismatchIsIgnored(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))
	e.gateway.status = payment.StatusPending // provider disagrees with the payload

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusSucceeded)); err != nil {
		t.Fatalf("mismatch must be acknowledged without error: %v", err)
	}
	if e.store.updateCalls() != 0 {
		t.Error("mismatched event must not change any state")
	}
	if e.pending.Len() != 1 {
		t.Error("pending record must survive a mismatched event")
	}
}

func TestVerificationFailureAsksForRedelivery(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))
	e.gateway.err = errors.New("provider down")

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusSucceeded)); err == nil {
		t.Fatal("expected error so the provider redelivers")
	}
	if e.pending.Len() != 1 {
		t.Error("pending record must survive a verification failure")
	}
}

func TestCanceledPaymentReleasesStock(t *testing.T) {
	e := newEnv(4)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))
	e.gateway.status = payment.StatusCanceled

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusCanceled)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := e.ledger.GetStock(context.Background()); got != 5 {
		t.Errorf("reserved unit must be released, stock = %d, want 5", got)
	}
	if got := e.store.statusOf("pay-1"); got != order.StatusCanceled {
		t.Errorf("order status = %s, want canceled", got)
	}
	if e.pending.Len() != 0 {
		t.Error("pending record must be removed after cancellation")
	}
	if !e.notifier.userContains(42, "отменён") {
		t.Error("buyer should be told about the cancellation")
	}
}

func TestCanceledCertificateLeavesStockAlone(t *testing.T) {
	e := newEnv(4)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductCertKid))
	e.gateway.status = payment.StatusCanceled

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusCanceled)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := e.ledger.GetStock(context.Background()); got != 4 {
		t.Errorf("certificate cancellation must not touch stock, got %d", got)
	}
}

func TestMarkPaidExhaustionKeepsPending(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))
	e.store.updateErr = errors.New("store down")

	err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusSucceeded))
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if e.pending.Len() != 1 {
		t.Error("pending record must be kept so the redelivery can finish the job")
	}
	if !e.notifier.adminContains("статус заказа не сохранён") {
		t.Error("operator must get a critical alert")
	}
}

func TestPaidOrderMissingInStoreStillFulfilled(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))
	e.store.updateErr = order.ErrNotFound

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusSucceeded)); err != nil {
		t.Fatalf("missing order row must not block fulfilment: %v", err)
	}
	if e.pending.Len() != 0 {
		t.Error("pending record must be removed")
	}
	if !e.notifier.userContains(42, "Спасибо") {
		t.Error("buyer should still get the thank-you")
	}
	if !e.notifier.adminContains("не найден") {
		t.Error("operator must be told the order row is missing")
	}
}

func TestPendingStatusIgnored(t *testing.T) {
	e := newEnv(5)
	e.pending.Add(pendingOrder("pay-1", catalog.ProductAmulet))
	e.gateway.status = payment.StatusPending

	if err := e.rec.Handle(context.Background(), event("pay-1", payment.StatusPending)); err != nil {
		t.Fatalf("pending status must be acknowledged: %v", err)
	}
	if e.store.updateCalls() != 0 || e.pending.Len() != 1 {
		t.Error("pending status must not change any state")
	}
}
