package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/discount/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const codeColumns = `
	code, kind, value, min_order_amount, max_discount_amount,
	usage_limit_total, usage_limit_per_user, used_count,
	valid_from, valid_until, is_active, created_at, updated_at
`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Code, error) {
	query := `SELECT ` + codeColumns + ` FROM discount_codes WHERE code = $1`

	found, err := scanCode(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select discount code: %w", err)
	}

	return found, nil
}

func (r *Repository) CountBuyerRedemptions(ctx context.Context, code, buyerID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM discount_redemptions
		WHERE code = $1 AND buyer_id = $2
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, code, buyerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}

	return count, nil
}

// Redeem records the redemption row first so a replay for the same order stops at
// the primary key, then bumps used_count with a guarded UPDATE. Both happen in one
// transaction.
func (r *Repository) Redeem(ctx context.Context, redemption ports.Redemption) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin redeem: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := tx.Exec(ctx, `
		INSERT INTO discount_redemptions (code, order_id, buyer_id, redeemed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code, order_id) DO NOTHING
	`, redemption.Code, redemption.OrderID, redemption.BuyerID, redemption.RedeemedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.Reject(redemption.Code, domain.ReasonNotFound)
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	if inserted.RowsAffected() == 0 {
		return nil
	}

	var perUserLimit int
	err = tx.QueryRow(ctx, `
		UPDATE discount_codes
		SET used_count = used_count + 1, updated_at = $2
		WHERE code = $1 AND used_count < usage_limit_total
		RETURNING usage_limit_per_user
	`, redemption.Code, redemption.RedeemedAt).Scan(&perUserLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reject(redemption.Code, domain.ReasonExhausted)
		}
		return fmt.Errorf("increment used_count: %w", err)
	}

	if perUserLimit > 0 {
		var count int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM discount_redemptions WHERE code = $1 AND buyer_id = $2
		`, redemption.Code, redemption.BuyerID).Scan(&count)
		if err != nil {
			return fmt.Errorf("count redemptions: %w", err)
		}
		if count > perUserLimit {
			return domain.Reject(redemption.Code, domain.ReasonPerUserLimitReached)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit redeem: %w", err)
	}

	return nil
}

func (r *Repository) Create(ctx context.Context, code domain.Code) error {
	query := `
		INSERT INTO discount_codes (` + codeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.pool.Exec(ctx, query,
		code.Code,
		code.Kind,
		code.Value,
		code.MinOrderAmount,
		code.MaxDiscountAmount,
		code.UsageLimitTotal,
		code.UsageLimitPerUser,
		code.UsedCount,
		code.ValidFrom,
		code.ValidUntil,
		code.IsActive,
		code.CreatedAt,
		code.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ports.ErrAlreadyExists
		}
		return fmt.Errorf("insert discount code: %w", err)
	}

	return nil
}

func (r *Repository) SetActive(ctx context.Context, code string, active bool, at time.Time) (*domain.Code, error) {
	query := `
		UPDATE discount_codes
		SET is_active = $2, updated_at = $3
		WHERE code = $1
		RETURNING ` + codeColumns

	updated, err := scanCode(r.pool.QueryRow(ctx, query, code, active, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("update discount code: %w", err)
	}

	return updated, nil
}

func scanCode(row pgx.Row) (*domain.Code, error) {
	var code domain.Code
	err := row.Scan(
		&code.Code,
		&code.Kind,
		&code.Value,
		&code.MinOrderAmount,
		&code.MaxDiscountAmount,
		&code.UsageLimitTotal,
		&code.UsageLimitPerUser,
		&code.UsedCount,
		&code.ValidFrom,
		&code.ValidUntil,
		&code.IsActive,
		&code.CreatedAt,
		&code.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &code, nil
}
