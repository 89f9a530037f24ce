package consent

import (
	"context"
	"sort"
	"sync"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
)

// InMemoryStore is a mutex-guarded consent store for tests and
// single-node development runs. Version checks mirror the SQL store's
// compare-and-swap semantics.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.ConsentID]*Request
	byOwner map[id.UserID][]id.ConsentID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.ConsentID]*Request),
		byOwner: make(map[id.UserID][]id.ConsentID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, request *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneRequest(request)
	s.byID[request.ID] = stored
	s.byOwner[request.OwnerID] = append(s.byOwner[request.OwnerID], request.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, consentID id.ConsentID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[consentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(stored), nil
}

func (s *InMemoryStore) Update(_ context.Context, request *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[request.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != request.Version {
		return sentinel.ErrConflict
	}
	updated := cloneRequest(request)
	updated.Version++
	s.byID[request.ID] = updated
	request.Version = updated.Version
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID, status Status) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Request, 0, len(s.byOwner[ownerID]))
	for _, consentID := range s.byOwner[ownerID] {
		stored := s.byID[consentID]
		if status != "" && stored.Status != status {
			continue
		}
		out = append(out, cloneRequest(stored))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneRequest(request *Request) *Request {
	out := *request
	out.Fields = append([]string(nil), request.Fields...)
	if request.ApprovedAt != nil {
		t := *request.ApprovedAt
		out.ApprovedAt = &t
	}
	if request.ExpiresAt != nil {
		t := *request.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}
