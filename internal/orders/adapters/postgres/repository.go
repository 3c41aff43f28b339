package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/lantern/internal/orders/domain"
	"github.com/dejobratic/lantern/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `
	id, buyer_id, venue_id, buyer_name, buyer_email, buyer_phone, lines,
	subtotal, coupon_code, discount_amount, total_amount, platform_fee, venue_payout,
	payment_method, status, payment_status, transaction_id, cancel_reason,
	timeline, version, created_at, updated_at
`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}
	timeline, err := json.Marshal(order.Timeline)
	if err != nil {
		return fmt.Errorf("encode order timeline: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.BuyerID,
		order.VenueID,
		order.Buyer.Name,
		order.Buyer.Email,
		order.Buyer.Phone,
		lines,
		order.Subtotal,
		nullable(order.CouponCode),
		order.DiscountAmount,
		order.TotalAmount,
		order.PlatformFee,
		order.VenuePayout,
		order.PaymentMethod,
		order.State.Status(),
		order.State.PaymentStatus(),
		nullable(order.TransactionID),
		nullable(order.CancelReason),
		timeline,
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	return order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	filter = filter.Normalize()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR buyer_id = $1)
		  AND ($2::text IS NULL OR venue_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	rows, err := r.pool.Query(ctx, query,
		nullable(filter.BuyerID),
		nullable(filter.VenueID),
		statusFilter,
		filter.PageSize,
		filter.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	return collectOrders(rows)
}

// Transition applies a compare-and-swap on the version column. Purchased items are
// inserted in the same transaction so completion is all or nothing.
func (r *Repository) Transition(ctx context.Context, order domain.Order, expectedVersion int64, items []domain.PurchasedItem) error {
	timeline, err := json.Marshal(order.Timeline)
	if err != nil {
		return fmt.Errorf("encode order timeline: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $3,
		    payment_status = $4,
		    transaction_id = $5,
		    cancel_reason = $6,
		    timeline = $7,
		    version = $8,
		    updated_at = $9
		WHERE id = $1 AND version = $2
	`,
		order.ID,
		expectedVersion,
		order.State.Status(),
		order.State.PaymentStatus(),
		nullable(order.TransactionID),
		nullable(order.CancelReason),
		timeline,
		order.Version,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check order: %w", err)
		}
		if !exists {
			return ports.ErrNotFound
		}
		return fmt.Errorf("%w: order %s changed since version %d", domain.ErrStateConflict, order.ID, expectedVersion)
	}

	if len(items) > 0 {
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(`
				INSERT INTO purchased_items (
					id, order_id, buyer_id, offering_id, believer_name, offering_name,
					venue_name, start_date, expiry_date, certificate_url
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				item.ID,
				item.OrderID,
				item.BuyerID,
				item.OfferingID,
				item.BelieverName,
				item.OfferingName,
				item.VenueName,
				item.StartDate,
				item.ExpiryDate,
				item.CertificateURL,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert purchased items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}

	return nil
}

func (r *Repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'pending' AND payment_status = 'unpaid' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale orders: %w", err)
	}

	return collectOrders(rows)
}

func (r *Repository) ListPurchasedItems(ctx context.Context, buyerID string) ([]domain.PurchasedItem, error) {
	query := `
		SELECT id, order_id, buyer_id, offering_id, believer_name, offering_name,
		       venue_name, start_date, expiry_date, certificate_url
		FROM purchased_items
		WHERE buyer_id = $1
		ORDER BY expiry_date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query purchased items: %w", err)
	}
	defer rows.Close()

	items := []domain.PurchasedItem{}
	for rows.Next() {
		var item domain.PurchasedItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.BuyerID,
			&item.OfferingID,
			&item.BelieverName,
			&item.OfferingName,
			&item.VenueName,
			&item.StartDate,
			&item.ExpiryDate,
			&item.CertificateURL,
		); err != nil {
			return nil, fmt.Errorf("scan purchased item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchased items: %w", err)
	}

	return items, nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order                                   domain.Order
		lines, timeline                         []byte
		couponCode, transactionID, cancelReason *string
		status, paymentStatus                   string
	)

	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.VenueID,
		&order.Buyer.Name,
		&order.Buyer.Email,
		&order.Buyer.Phone,
		&lines,
		&order.Subtotal,
		&couponCode,
		&order.DiscountAmount,
		&order.TotalAmount,
		&order.PlatformFee,
		&order.VenuePayout,
		&order.PaymentMethod,
		&status,
		&paymentStatus,
		&transactionID,
		&cancelReason,
		&timeline,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state, err := domain.NewState(domain.Status(status), domain.PaymentStatus(paymentStatus))
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", order.ID, err)
	}
	order.State = state
	order.CouponCode = deref(couponCode)
	order.TransactionID = deref(transactionID)
	order.CancelReason = deref(cancelReason)

	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	if err := json.Unmarshal(timeline, &order.Timeline); err != nil {
		return nil, fmt.Errorf("decode order timeline: %w", err)
	}

	return &order, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
