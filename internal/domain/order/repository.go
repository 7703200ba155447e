package order

import "context"

// Store is the order ledger capability. Two implementations exist: the
// durable postgres store and the in-process fallback, selected once at
// startup. Mutating calls are routed through the retry executor by callers.
type Store interface {
	AddOrder(ctx context.Context, o *PendingOrder) error
	UpdateStatus(ctx context.Context, paymentID string, status Status) error

	AddToWaitlist(ctx context.Context, entry WaitlistEntry) error
	Waitlist(ctx context.Context) ([]WaitlistEntry, error)
	ClearWaitlist(ctx context.Context) error
}
