package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dejobratic/lantern/internal/cart/domain"
	"github.com/dejobratic/lantern/internal/cart/ports"
)

var ErrOwnerRequired = errors.New("owner_id is required")

// Service applies cart mutations as load, mutate, save of a whole cart snapshot.
type Service struct {
	repo ports.CartRepository
	now  func() time.Time
}

func NewService(repo ports.CartRepository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Get(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	return s.repo.Load(ctx, ownerID)
}

func (s *Service) AddLine(ctx context.Context, ownerID string, line domain.Line) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, func(c *domain.Cart) error {
		return c.AddLine(line)
	})
}

func (s *Service) UpdateLine(ctx context.Context, ownerID, offeringID string, patch domain.Patch) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, func(c *domain.Cart) error {
		return c.UpdateLine(offeringID, patch)
	})
}

func (s *Service) RemoveLine(ctx context.Context, ownerID, offeringID string) (*domain.Cart, error) {
	return s.mutate(ctx, ownerID, func(c *domain.Cart) error {
		return c.RemoveLine(offeringID)
	})
}

func (s *Service) Clear(ctx context.Context, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrOwnerRequired
	}
	return s.repo.Clear(ctx, ownerID)
}

func (s *Service) mutate(ctx context.Context, ownerID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if err := fn(cart); err != nil {
		return nil, err
	}

	cart.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}
