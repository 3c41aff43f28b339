package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/lantern/internal/orders/ports"
)

type entry struct {
	response  *ports.StoredResponse
	expiresAt time.Time
}

// Store keeps idempotency claims in process memory. Expired keys are reclaimed lazily.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// NewStore creates a new in-memory idempotency store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Claim reserves key for ttl unless a live claim or completed response already holds it.
func (s *Store) Claim(_ context.Context, key string, ttl time.Duration) (ports.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.items[key]; ok && now.Before(existing.expiresAt) {
		if existing.response != nil {
			copy := *existing.response
			return ports.Claim{Stored: &copy}, nil
		}
		return ports.Claim{}, nil
	}

	s.items[key] = entry{expiresAt: now.Add(ttl)}
	return ports.Claim{Acquired: true}, nil
}

// Complete records the response for key so later claims replay it until ttl elapses.
func (s *Store) Complete(_ context.Context, key string, response ports.StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry{response: &response, expiresAt: s.now().Add(ttl)}
	return nil
}

// Release drops an uncompleted claim so the key can be retried immediately.
func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok && existing.response == nil {
		delete(s.items, key)
	}
	return nil
}

func (s *Store) Forget(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok && existing.response != nil && existing.response.OrderID == orderID {
		delete(s.items, key)
	}
	return nil
}
