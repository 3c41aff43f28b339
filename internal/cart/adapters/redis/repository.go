package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/lantern/internal/cart/domain"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

// Repository stores each cart as one JSON document under cart:<owner>, so a save
// replaces the whole snapshot at once.
type Repository struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewRepository(rdb goredis.UniversalClient, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Repository{rdb: rdb, ttl: ttl}
}

func key(ownerID string) string {
	return "cart:" + ownerID
}

func (r *Repository) Load(ctx context.Context, ownerID string) (*domain.Cart, error) {
	data, err := r.rdb.Get(ctx, key(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.New(ownerID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = []domain.Line{}
	}
	cart.OwnerID = ownerID

	return &cart, nil
}

func (r *Repository) Save(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := r.rdb.Set(ctx, key(cart.OwnerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}

	return nil
}

func (r *Repository) Clear(ctx context.Context, ownerID string) error {
	if err := r.rdb.Del(ctx, key(ownerID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
