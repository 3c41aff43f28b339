package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Claim inserts a pending row for key, taking over rows whose window has elapsed.
func (s *Store) Claim(ctx context.Context, key string, ttl time.Duration) (ports.Claim, error) {
	now := s.now()

	query := `
		INSERT INTO idempotency_keys (key, expires_at, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET order_id = NULL, body = NULL, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
		WHERE idempotency_keys.expires_at <= $3
		RETURNING key
	`

	var claimed string
	err := s.pool.QueryRow(ctx, query, key, now.Add(ttl), now).Scan(&claimed)
	if err == nil {
		return ports.Claim{Acquired: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ports.Claim{}, fmt.Errorf("claim idempotency key: %w", err)
	}

	var orderID *string
	var body []byte
	err = s.pool.QueryRow(ctx, `SELECT order_id, body FROM idempotency_keys WHERE key = $1`, key).Scan(&orderID, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Released between the two statements; the caller may retry.
			return ports.Claim{}, nil
		}
		return ports.Claim{}, fmt.Errorf("select idempotency key: %w", err)
	}

	if body == nil {
		return ports.Claim{}, nil
	}

	resp := &ports.StoredResponse{Body: body}
	if orderID != nil {
		resp.OrderID = *orderID
	}
	return ports.Claim{Stored: resp}, nil
}

func (s *Store) Complete(ctx context.Context, key string, response ports.StoredResponse, ttl time.Duration) error {
	query := `
		INSERT INTO idempotency_keys (key, order_id, body, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET order_id = EXCLUDED.order_id, body = EXCLUDED.body, expires_at = EXCLUDED.expires_at
	`

	_, err := s.pool.Exec(ctx, query, key, response.OrderID, response.Body, s.now().Add(ttl))
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}

	return nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND body IS NULL`, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *Store) Forget(ctx context.Context, key, orderID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND order_id = $2`, key, orderID)
	if err != nil {
		return fmt.Errorf("forget idempotency key: %w", err)
	}
	return nil
}
