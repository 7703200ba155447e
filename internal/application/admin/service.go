// Package admin implements the operator commands: restocking, stock
// inspection and the restock broadcast to the waitlist. Authorization is the
// transport's job; the service assumes the caller is the operator.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/reply"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/inventory"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/metrics"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/retry"
)

// StockLedger is the counter the operator manages.
type StockLedger interface {
	GetStock(ctx context.Context) int
	SetStock(ctx context.Context, quantity int) error
}

// Notifier delivers the restock broadcast.
type Notifier interface {
	NotifyUser(ctx context.Context, chatID int64, text string) error
}

type Params struct {
	Ledger     StockLedger
	Store      order.Store
	Retrier    *retry.Executor
	Notifier   Notifier
	Thresholds inventory.Thresholds
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

type Service struct {
	ledger     StockLedger
	store      order.Store
	retrier    *retry.Executor
	notifier   Notifier
	thresholds inventory.Thresholds
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func New(p Params) *Service {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Service{
		ledger:     p.Ledger,
		store:      p.Store,
		retrier:    p.Retrier,
		notifier:   p.Notifier,
		thresholds: p.Thresholds,
		metrics:    p.Metrics,
		log:        p.Logger.With(zap.String("component", "admin")),
	}
}

// SetStock handles /setstock N.
func (s *Service) SetStock(ctx context.Context, chatID int64, arg string) []reply.Message {
	quantity, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || quantity < 0 {
		return []reply.Message{reply.Text(chatID, "Использование: /setstock <число ≥ 0>")}
	}
	if err := s.ledger.SetStock(ctx, quantity); err != nil {
		s.log.Error("set_stock_failed", zap.Int("quantity", quantity), zap.Error(err))
		return []reply.Message{reply.Text(chatID,
			fmt.Sprintf("⚠️ Остаток обновлён локально (%d шт.), но запись в базу не удалась.", quantity))}
	}
	s.metrics.StockLevel.Set(float64(quantity))
	s.log.Info("stock_set", zap.Int("quantity", quantity))

	text := fmt.Sprintf("✅ Остаток обновлён: %d шт.", quantity)
	switch s.thresholds.Classify(quantity) {
	case inventory.LevelCritical:
		text += "\n🚨 Это критический уровень."
	case inventory.LevelLow:
		text += "\n⚠️ Это ниже порога запаса."
	}
	return []reply.Message{reply.Text(chatID, text)}
}

// Stock handles /stock: the live counter plus the waitlist size.
func (s *Service) Stock(ctx context.Context, chatID int64) []reply.Message {
	quantity := s.ledger.GetStock(ctx)
	text := fmt.Sprintf("📦 В наличии: %d шт.", quantity)

	if wl, err := s.store.Waitlist(ctx); err == nil {
		text += fmt.Sprintf("\n🔔 В листе ожидания: %d", len(wl))
	} else {
		s.log.Warn("waitlist_read_failed", zap.Error(err))
	}
	return []reply.Message{reply.Text(chatID, text)}
}

// NotifyWaitlist handles /notify_waitlist: best-effort broadcast to everyone
// waiting, then the list is cleared. Individual delivery failures do not stop
// the broadcast.
func (s *Service) NotifyWaitlist(ctx context.Context, chatID int64) ([]reply.Message, error) {
	entries, err := s.store.Waitlist(ctx)
	if err != nil {
		return []reply.Message{reply.Text(chatID, "⚠️ Не удалось прочитать лист ожидания.")},
			fmt.Errorf("read waitlist: %w", err)
	}
	if len(entries) == 0 {
		return []reply.Message{reply.Text(chatID, "Лист ожидания пуст.")}, nil
	}

	const restockText = "🌿 Хорошие новости: ЭКОамулеты снова в наличии!\nОформить заказ: /start"
	delivered := 0
	for _, e := range entries {
		if err := s.notifier.NotifyUser(ctx, e.UserID, restockText); err != nil {
			s.log.Warn("restock_notify_failed", zap.Int64("chat_id", e.UserID), zap.Error(err))
			continue
		}
		delivered++
	}

	if err := s.retrier.Do(ctx, "waitlist.clear", func(ctx context.Context) error {
		return s.store.ClearWaitlist(ctx)
	}); err != nil {
		return []reply.Message{reply.Text(chatID,
				fmt.Sprintf("Уведомили %d из %d, но лист ожидания не очистился.", delivered, len(entries)))},
			fmt.Errorf("clear waitlist: %w", err)
	}

	s.log.Info("waitlist_notified", zap.Int("delivered", delivered), zap.Int("total", len(entries)))
	return []reply.Message{reply.Text(chatID,
		fmt.Sprintf("✅ Уведомили %d из %d. Лист ожидания очищен.", delivered, len(entries)))}, nil
}
