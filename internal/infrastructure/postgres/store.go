// Package postgres is the durable backend for the order store and the stock
// counter: one table each for stock, orders and the restock waitlist.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
)

// Connect builds a pgx pool and verifies the connection with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type Store struct {
	db        *pgxpool.Pool
	productID string
}

// NewStore binds the store to the stock-tracked product id used by the
// ledger backend methods.
func NewStore(db *pgxpool.Pool, productID string) *Store {
	return &Store{db: db, productID: productID}
}

// EnsureSchema creates the three tables when they do not exist yet and seeds
// the stock row for the tracked product.
func (s *Store) EnsureSchema(ctx context.Context, productName string, price int64, initialStock int) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock (
			product_id TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			price      BIGINT NOT NULL,
			quantity   INT NOT NULL CHECK (quantity >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			payment_id   TEXT PRIMARY KEY,
			user_id      BIGINT NOT NULL,
			full_name    TEXT NOT NULL,
			phone        TEXT NOT NULL,
			address      TEXT NOT NULL,
			email        TEXT NOT NULL DEFAULT '',
			product_id   TEXT NOT NULL,
			product_name TEXT NOT NULL,
			price        BIGINT NOT NULL,
			status       TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS waitlist (
			phone    TEXT PRIMARY KEY,
			user_id  BIGINT NOT NULL,
			added_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO stock (product_id, name, price, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id) DO NOTHING`,
		s.productID, productName, price, initialStock,
	)
	if err != nil {
		return fmt.Errorf("seed stock row: %w", err)
	}
	return nil
}

// GetStock implements the ledger backend read.
func (s *Store) GetStock(ctx context.Context) (int, error) {
	var quantity int
	err := s.db.QueryRow(ctx,
		`SELECT quantity FROM stock WHERE product_id = $1`, s.productID,
	).Scan(&quantity)
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return quantity, nil
}

// SetStock implements the ledger backend write.
func (s *Store) SetStock(ctx context.Context, quantity int) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE stock SET quantity = $2 WHERE product_id = $1`, s.productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("set stock: product %s not found", s.productID)
	}
	return nil
}

func (s *Store) AddOrder(ctx context.Context, o *domain.PendingOrder) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (payment_id, user_id, full_name, phone, address, email,
		                    product_id, product_name, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.PaymentID, o.UserID, o.FullName, o.Phone, o.Address, o.Email,
		o.ProductID, o.ProductName, o.Price, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add order: %w", err)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, paymentID string, status domain.Status) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE payment_id = $1`, paymentID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) AddToWaitlist(ctx context.Context, entry domain.WaitlistEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO waitlist (phone, user_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO NOTHING`,
		entry.Phone, entry.UserID, entry.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("add to waitlist: %w", err)
	}
	return nil
}

func (s *Store) Waitlist(ctx context.Context) ([]domain.WaitlistEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT phone, user_id, added_at FROM waitlist ORDER BY added_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("waitlist: %w", err)
	}
	defer rows.Close()

	var out []domain.WaitlistEntry
	for rows.Next() {
		var e domain.WaitlistEntry
		if err := rows.Scan(&e.Phone, &e.UserID, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("waitlist scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("waitlist rows: %w", err)
	}
	return out, nil
}

func (s *Store) ClearWaitlist(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM waitlist`); err != nil {
		return fmt.Errorf("clear waitlist: %w", err)
	}
	return nil
}
