package token

import (
	"context"
	"sort"
	"sync"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
)

// InMemoryStore is a mutex-guarded credential store for tests and
// single-node development runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.TokenID]*Credential
	byOwner map[id.UserID][]id.TokenID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.TokenID]*Credential),
		byOwner: make(map[id.UserID][]id.TokenID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *credential
	s.byID[credential.ID] = &stored
	s.byOwner[credential.OwnerID] = append(s.byOwner[credential.OwnerID], credential.ID)
	return nil
}

// Update applies the one-way revocation transition. The stored row must
// still be active: of two racing revocations, the loser gets
// ErrAlreadyRevoked instead of silently re-winning.
func (s *InMemoryStore) Update(_ context.Context, credential *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[credential.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != StatusActive {
		return sentinel.ErrAlreadyRevoked
	}
	stored := *credential
	s.byID[credential.ID] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, tokenID id.TokenID) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *stored
	return &out, nil
}

func (s *InMemoryStore) FindActive(_ context.Context, ownerID id.UserID) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Credential
	for _, tokenID := range s.byOwner[ownerID] {
		c := s.byID[tokenID]
		if c.Status != StatusActive {
			continue
		}
		if latest == nil || c.IssuedAt.After(latest.IssuedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Credential, 0, len(s.byOwner[ownerID]))
	for _, tokenID := range s.byOwner[ownerID] {
		c := *s.byID[tokenID]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}
