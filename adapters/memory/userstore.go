// Package memory provides in-memory implementations of storage ports.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/routekit/ports"
)

// UserStore is an in-memory ports.UserStore. Safe for concurrent use.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]ports.User
	byEmail map[string]string
	order   map[string]uint64
	seq     uint64
}

// NewUserStore creates an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]ports.User),
		byEmail: make(map[string]string),
		order:   make(map[string]uint64),
	}
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return ports.User{}, ports.ErrNotFound
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return ports.User{}, ports.ErrNotFound
	}
	return s.users[id], nil
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, u ports.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[u.Email]; exists {
		return ports.ErrDuplicate
	}
	if _, exists := s.users[u.ID]; exists {
		return ports.ErrDuplicate
	}

	s.seq++
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	s.order[u.ID] = s.seq
	return nil
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ports.ErrNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	delete(s.order, id)
	return nil
}

// List returns users by creation time, then insertion order.
func (s *UserStore) List(ctx context.Context) ([]ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}

var _ ports.UserStore = (*UserStore)(nil)
