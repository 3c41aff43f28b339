package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/discount/ports"
)

type redemptionKey struct {
	code    string
	orderID string
}

// Repository keeps codes and redemptions in process memory.
type Repository struct {
	mu          sync.Mutex
	codes       map[string]domain.Code
	redemptions map[redemptionKey]ports.Redemption
}

func NewRepository() *Repository {
	return &Repository{
		codes:       make(map[string]domain.Code),
		redemptions: make(map[redemptionKey]ports.Redemption),
	}
}

func (r *Repository) GetByCode(_ context.Context, code string) (*domain.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.codes[code]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &stored, nil
}

func (r *Repository) CountBuyerRedemptions(_ context.Context, code, buyerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(code, buyerID), nil
}

func (r *Repository) Redeem(_ context.Context, redemption ports.Redemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := redemptionKey{code: redemption.Code, orderID: redemption.OrderID}
	if _, ok := r.redemptions[key]; ok {
		return nil
	}

	stored, ok := r.codes[redemption.Code]
	if !ok {
		return domain.Reject(redemption.Code, domain.ReasonNotFound)
	}
	if stored.UsedCount >= stored.UsageLimitTotal {
		return domain.Reject(redemption.Code, domain.ReasonExhausted)
	}
	if stored.UsageLimitPerUser > 0 && r.countLocked(redemption.Code, redemption.BuyerID) >= stored.UsageLimitPerUser {
		return domain.Reject(redemption.Code, domain.ReasonPerUserLimitReached)
	}

	stored.UsedCount++
	stored.UpdatedAt = redemption.RedeemedAt
	r.codes[redemption.Code] = stored
	r.redemptions[key] = redemption
	return nil
}

func (r *Repository) Create(_ context.Context, code domain.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[code.Code]; ok {
		return ports.ErrAlreadyExists
	}
	r.codes[code.Code] = code
	return nil
}

func (r *Repository) SetActive(_ context.Context, code string, active bool, at time.Time) (*domain.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.codes[code]
	if !ok {
		return nil, ports.ErrNotFound
	}
	stored.IsActive = active
	stored.UpdatedAt = at
	r.codes[code] = stored
	return &stored, nil
}

func (r *Repository) countLocked(code, buyerID string) int {
	count := 0
	for key, redemption := range r.redemptions {
		if key.code == code && redemption.BuyerID == buyerID {
			count++
		}
	}
	return count
}
