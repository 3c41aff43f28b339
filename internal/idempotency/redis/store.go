package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/lantern/internal/orders/ports"
	goredis "github.com/redis/go-redis/v9"
)

// pending marks a claimed key whose submission has not completed yet.
const pending = "pending"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store keeps claims under idem:<key> with SET NX and lets Redis expire them.
type Store struct {
	rdb goredis.UniversalClient
}

func NewStore(rdb goredis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func redisKey(key string) string {
	return "idem:" + key
}

type storedValue struct {
	OrderID string `json:"order_id"`
	Body    []byte `json:"body"`
}

func (s *Store) Claim(ctx context.Context, key string, ttl time.Duration) (ports.Claim, error) {
	ok, err := s.rdb.SetNX(ctx, redisKey(key), pending, ttl).Result()
	if err != nil {
		return ports.Claim{}, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return ports.Claim{Acquired: true}, nil
	}

	raw, err := s.rdb.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ports.Claim{}, nil
		}
		return ports.Claim{}, fmt.Errorf("get idempotency key: %w", err)
	}
	if raw == pending {
		return ports.Claim{}, nil
	}

	var v storedValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ports.Claim{}, fmt.Errorf("decode idempotency response: %w", err)
	}
	return ports.Claim{Stored: &ports.StoredResponse{OrderID: v.OrderID, Body: v.Body}}, nil
}

func (s *Store) Complete(ctx context.Context, key string, response ports.StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(storedValue{OrderID: response.OrderID, Body: response.Body})
	if err != nil {
		return fmt.Errorf("encode idempotency response: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release deletes the key only while it still holds the pending marker.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.rdb, []string{redisKey(key)}, pending).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Forget deletes a completed key under WATCH so a concurrent re-claim is not lost.
func (s *Store) Forget(ctx context.Context, key, orderID string) error {
	rk := redisKey(key)
	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, rk).Result()
		if errors.Is(err, goredis.Nil) || raw == pending {
			return nil
		}
		if err != nil {
			return err
		}
		var v storedValue
		if err := json.Unmarshal([]byte(raw), &v); err != nil || v.OrderID != orderID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, rk)
			return nil
		})
		return err
	}, rk)
	if err != nil && !errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("forget idempotency key: %w", err)
	}
	return nil
}
