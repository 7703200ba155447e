package checkout

import (
	"context"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
)

// Callback data understood by the telegram transport.
const (
	CallbackBuyPrefix    = "buy:"
	CallbackConfirm      = "confirm_order"
	CallbackCancel       = "cancel_order"
	CallbackJoinWaitlist = "join_waitlist"
	CallbackSkipWaitlist = "skip_waitlist"
	CallbackHelp         = "help"
)

// Gateway creates payments at the provider. Every call generates a fresh
// idempotence key, so the workflow never reuses one across attempts.
type Gateway interface {
	CreatePayment(ctx context.Context, amountMinor int64, description string, metadata map[string]string) (paymentID, redirectURL string, err error)
}

// StockLedger is the atomic stock counter the workflow reserves units from.
type StockLedger interface {
	GetStock(ctx context.Context) int
	DecrementIfPositive(ctx context.Context) (int, error)
	Increment(ctx context.Context, n int) (int, error)
}

// PendingRegistry tracks orders between payment creation and webhook
// reconciliation.
type PendingRegistry interface {
	Add(o *order.PendingOrder)
	Remove(paymentID string) (*order.PendingOrder, bool)
}

// Notifier delivers out-of-band operator alerts.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string) error
}
