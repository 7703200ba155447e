package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("order: not found")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// NoDelivery is the address sentinel for products that do not ship.
const NoDelivery = "—"

// PendingOrder is an order between payment creation and final reconciliation.
// It is created exclusively by the checkout workflow and finalized exactly
// once by the webhook reconciler. Keyed by the provider-issued payment id.
type PendingOrder struct {
	PaymentID   string    `json:"payment_id"`
	UserID      int64     `json:"user_id"`
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Email       string    `json:"email,omitempty"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Price       int64     `json:"price"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Clone returns a copy safe to hand outside a repository.
func (o *PendingOrder) Clone() *PendingOrder {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// WaitlistEntry records a buyer who asked to be notified on restock.
type WaitlistEntry struct {
	Phone   string    `json:"phone"`
	UserID  int64     `json:"user_id"`
	AddedAt time.Time `json:"added_at"`
}
