// Package pending tracks orders between payment creation and webhook
// reconciliation. The registry is mirrored to a JSON file, rewritten in full
// on every change and loaded at startup, so in-flight orders survive a
// restart.
package pending

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	domain "github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
)

type Store struct {
	mu     sync.Mutex
	path   string
	orders map[string]*domain.PendingOrder
	log    *zap.Logger
}

// NewStore creates a registry backed by the given file path. An empty path
// disables the file mirror (used by tests).
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		orders: make(map[string]*domain.PendingOrder),
		log:    logger.With(zap.String("component", "pending_store")),
	}
}

// Load recovers in-flight orders from the fallback file. A missing file is
// a clean start, not an error.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pending store: read %s: %w", s.path, err)
	}

	recovered := make(map[string]*domain.PendingOrder)
	if err := json.Unmarshal(data, &recovered); err != nil {
		return fmt.Errorf("pending store: parse %s: %w", s.path, err)
	}
	s.orders = recovered
	s.log.Info("pending_orders_recovered", zap.Int("count", len(recovered)))
	return nil
}

// Add registers an in-flight order and mirrors the registry to disk.
func (s *Store) Add(o *domain.PendingOrder) {
	if o == nil || o.PaymentID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.PaymentID] = o.Clone()
	s.persist()
}

func (s *Store) Get(paymentID string) (*domain.PendingOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[paymentID]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// Remove deletes the order and rewrites the file; returns the removed order
// so the caller can notify without a second lookup.
func (s *Store) Remove(paymentID string) (*domain.PendingOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[paymentID]
	if !ok {
		return nil, false
	}
	delete(s.orders, paymentID)
	s.persist()
	return o, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// persist must be called with the mutex held. A write failure only degrades
// restart recovery, so it is logged and not surfaced.
func (s *Store) persist() {
	if s.path == "" {
		return
	}

	data, err := json.MarshalIndent(s.orders, "", "  ")
	if err != nil {
		s.log.Error("pending_file_marshal_failed", zap.Error(err))
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Error("pending_file_write_failed", zap.String("path", tmp), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error("pending_file_rename_failed", zap.String("path", s.path), zap.Error(err))
	}
}
