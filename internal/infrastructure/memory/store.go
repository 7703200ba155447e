// Package memory is the in-process fallback for the order store, used when
// no durable backend is configured or it cannot be reached at startup.
package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
)

type Store struct {
	mu       sync.RWMutex
	orders   map[string]*domain.PendingOrder
	waitlist []domain.WaitlistEntry
}

func NewStore() *Store {
	return &Store{
		orders: make(map[string]*domain.PendingOrder),
	}
}

func (s *Store) AddOrder(ctx context.Context, o *domain.PendingOrder) error {
	_ = ctx
	if o == nil || o.PaymentID == "" {
		return fmt.Errorf("memory store: payment id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.PaymentID] = o.Clone()
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, paymentID string, status domain.Status) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	return nil
}

// Get is used by tests and diagnostics; not part of the store contract.
func (s *Store) Get(ctx context.Context, paymentID string) (*domain.PendingOrder, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *Store) AddToWaitlist(ctx context.Context, entry domain.WaitlistEntry) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.waitlist {
		if e.Phone == entry.Phone {
			return nil
		}
	}
	s.waitlist = append(s.waitlist, entry)
	return nil
}

func (s *Store) Waitlist(ctx context.Context) ([]domain.WaitlistEntry, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WaitlistEntry, len(s.waitlist))
	copy(out, s.waitlist)
	return out, nil
}

func (s *Store) ClearWaitlist(ctx context.Context) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	s.waitlist = nil
	return nil
}
