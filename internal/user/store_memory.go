package user

import (
	"context"
	"strings"
	"sync"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
)

// InMemoryStore is a mutex-guarded user store for tests and single-node
// development runs. Email lookup is case-insensitive.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*User
	byEmail map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.UserID]*User),
		byEmail: make(map[string]id.UserID),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *InMemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(u.Email)
	if _, taken := s.byEmail[key]; taken {
		return sentinel.ErrConflict
	}
	stored := *u
	s.byID[u.ID] = &stored
	s.byEmail[key] = u.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *stored
	return &out, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.byID[userID]
	return &out, nil
}

func (s *InMemoryStore) Update(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, emailKey(stored.Email))
	updated := *u
	s.byID[u.ID] = &updated
	s.byEmail[emailKey(u.Email)] = u.ID
	return nil
}
