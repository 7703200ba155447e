// Package reconcile applies payment webhooks to order state. The webhook
// payload is never trusted on its own: every event is re-verified against the
// provider before any state changes, and applying the same event twice is a
// no-op.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/catalog"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/payment"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/metrics"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/retry"
)

// Event is the provider webhook payload.
type Event struct {
	Type   string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// Gateway re-verifies payment statuses directly against the provider.
type Gateway interface {
	FindPayment(ctx context.Context, paymentID string) (payment.Status, error)
}

// StockLedger exposes the compensating increment used for canceled payments.
type StockLedger interface {
	Increment(ctx context.Context, n int) (int, error)
}

// PendingRegistry is the in-flight order registry shared with checkout.
type PendingRegistry interface {
	Get(paymentID string) (*order.PendingOrder, bool)
	Remove(paymentID string) (*order.PendingOrder, bool)
}

// Notifier delivers the buyer thank-you and the operator alerts.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string) error
	NotifyUser(ctx context.Context, chatID int64, text string) error
}

type Params struct {
	Catalog  *catalog.Catalog
	Ledger   StockLedger
	Store    order.Store
	Pending  PendingRegistry
	Gateway  Gateway
	Retrier  *retry.Executor
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Reconciler struct {
	catalog  *catalog.Catalog
	ledger   StockLedger
	store    order.Store
	pending  PendingRegistry
	gateway  Gateway
	retrier  *retry.Executor
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func New(p Params) *Reconciler {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Reconciler{
		catalog:  p.Catalog,
		ledger:   p.Ledger,
		store:    p.Store,
		pending:  p.Pending,
		gateway:  p.Gateway,
		retrier:  p.Retrier,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		log:      p.Logger.With(zap.String("component", "reconciler")),
	}
}

// Handle applies one webhook event. A returned error means the delivery must
// be retried by the provider (HTTP 500); a nil return acknowledges it.
func (r *Reconciler) Handle(ctx context.Context, ev Event) error {
	paymentID := ev.Object.ID
	if paymentID == "" {
		r.metrics.WebhookEvents.WithLabelValues("invalid").Inc()
		return fmt.Errorf("reconcile: event without payment id")
	}

	ctx, span := otel.Tracer("reconcile").Start(ctx, "reconcile.handle",
		trace.WithAttributes(
			attribute.String("payment_id", paymentID),
			attribute.String("event", ev.Type),
		))
	defer span.End()
	log := r.log.With(zap.String("payment_id", paymentID), zap.String("event", ev.Type))

	verified, err := r.gateway.FindPayment(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		r.metrics.WebhookEvents.WithLabelValues("verify_error").Inc()
		log.Error("webhook_verification_failed", zap.Error(err))
		return fmt.Errorf("reconcile: verify payment: %w", err)
	}
	if claimed := payment.Status(ev.Object.Status); verified != claimed {
		r.metrics.WebhookEvents.WithLabelValues("mismatch").Inc()
		log.Warn("webhook_status_mismatch",
			zap.String("claimed", string(claimed)),
			zap.String("verified", string(verified)),
		)
		return nil
	}

	switch verified {
	case payment.StatusSucceeded:
		return r.applySuccess(ctx, log, paymentID)
	case payment.StatusCanceled:
		return r.applyCancellation(ctx, log, paymentID)
	default:
		r.metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		log.Info("webhook_ignored", zap.String("status", string(verified)))
		return nil
	}
}

func (r *Reconciler) applySuccess(ctx context.Context, log *zap.Logger, paymentID string) error {
	po, ok := r.pending.Get(paymentID)
	if !ok {
		// already reconciled or unknown payment, either way nothing to do
		r.metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		log.Info("webhook_already_applied")
		return nil
	}

	err := r.retrier.Do(ctx, "orders.mark_paid", func(ctx context.Context) error {
		return r.store.UpdateStatus(ctx, paymentID, order.StatusPaid)
	})
	switch {
	case errors.Is(err, order.ErrNotFound):
		// the payment is real even if the order row is missing; fulfil and flag
		log.Error("paid_order_missing_in_store")
		r.notifyAdmin(ctx, fmt.Sprintf(
			"🚨 Оплата получена, но заказ не найден в таблице.\nПлатёж: %s\nТелефон: %s", paymentID, po.Phone))
	case err != nil:
		r.metrics.WebhookEvents.WithLabelValues("store_error").Inc()
		r.notifyAdmin(ctx, fmt.Sprintf(
			"🚨 Оплата получена, но статус заказа не сохранён.\nПлатёж: %s\nТелефон: %s", paymentID, po.Phone))
		return fmt.Errorf("reconcile: mark paid: %w", err)
	}

	thanks := r.catalog.ThankYouText(po.ProductID, po.Email)
	if thanks == "" {
		thanks = "💚 Спасибо за покупку! Оплата получена.\nМы свяжемся с вами для уточнения доставки."
	}
	r.notifyUser(ctx, po.UserID, thanks)
	r.notifyAdmin(ctx, fmt.Sprintf(
		"💰 Заказ оплачен\nТовар: %s\nИмя: %s\nТелефон: %s\nАдрес: %s\nПлатёж: %s",
		po.ProductName, po.FullName, po.Phone, po.Address, paymentID,
	))

	r.pending.Remove(paymentID)
	r.metrics.OrdersPaid.Inc()
	r.metrics.WebhookEvents.WithLabelValues("paid").Inc()
	log.Info("order_paid", zap.String("product_id", po.ProductID))
	return nil
}

func (r *Reconciler) applyCancellation(ctx context.Context, log *zap.Logger, paymentID string) error {
	po, ok := r.pending.Get(paymentID)
	if !ok {
		r.metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		log.Info("webhook_already_applied")
		return nil
	}

	if p, err := r.catalog.Get(po.ProductID); err == nil && p.TracksStock {
		if restored, incErr := r.ledger.Increment(ctx, 1); incErr != nil {
			log.Error("stock_release_failed", zap.Error(incErr))
		} else {
			r.metrics.StockLevel.Set(float64(restored))
		}
	}

	if err := r.retrier.Do(ctx, "orders.mark_canceled", func(ctx context.Context) error {
		return r.store.UpdateStatus(ctx, paymentID, order.StatusCanceled)
	}); err != nil && !errors.Is(err, order.ErrNotFound) {
		// cancellation is terminal regardless, so log and move on
		log.Error("mark_canceled_failed", zap.Error(err))
		r.notifyAdmin(ctx, fmt.Sprintf("⚠️ Платёж %s отменён, но статус заказа не сохранён.", paymentID))
	}

	r.notifyUser(ctx, po.UserID,
		"😔 Платёж был отменён. Если это ошибка, оформите заказ заново через /start.")
	r.notifyAdmin(ctx, fmt.Sprintf(
		"↩️ Платёж отменён\nТовар: %s\nТелефон: %s\nПлатёж: %s", po.ProductName, po.Phone, paymentID))

	r.pending.Remove(paymentID)
	r.metrics.OrdersCanceled.Inc()
	r.metrics.WebhookEvents.WithLabelValues("canceled").Inc()
	log.Info("order_canceled", zap.String("product_id", po.ProductID))
	return nil
}

func (r *Reconciler) notifyAdmin(ctx context.Context, text string) {
	if err := r.notifier.NotifyAdmin(ctx, text); err != nil {
		r.log.Error("admin_notify_failed", zap.Error(err))
	}
}

func (r *Reconciler) notifyUser(ctx context.Context, chatID int64, text string) {
	if err := r.notifier.NotifyUser(ctx, chatID, text); err != nil {
		r.log.Error("user_notify_failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
