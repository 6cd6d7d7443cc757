package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
)

// EnsureUser creates the user on first interaction and refreshes its profile
func (s *Store) EnsureUser(ctx context.Context, key string, p domain.Profile) (*domain.User, error) {
	var u domain.User
	err := s.getJSON(ctx, UserKey(key), &u)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = domain.User{Key: key}
	case err != nil:
		return nil, err
	}

	u.Apply(p, s.now())

	if err := s.setJSON(ctx, UserKey(key), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by key
func (s *Store) GetUser(ctx context.Context, key string) (*domain.User, error) {
	var u domain.User
	if err := s.getJSON(ctx, UserKey(key), &u); err != nil {
		return nil, fmt.Errorf("user %s: %w", key, err)
	}
	return &u, nil
}
