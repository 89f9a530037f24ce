package evidence

import (
	"context"
	"sort"
	"sync"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
)

// InMemoryStore keeps documents in maps. It intentionally favors clarity
// over performance.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.DocumentID]*Document
	byUser map[id.UserID]map[Category]id.DocumentID // current document per category
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.DocumentID]*Document),
		byUser: make(map[id.UserID]map[Category]id.DocumentID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byUser[doc.OwnerID]
	if !ok {
		current = make(map[Category]id.DocumentID)
		s.byUser[doc.OwnerID] = current
	}

	// Supersede, don't erase: the prior document stays reachable by ID.
	if priorID, ok := current[doc.Category]; ok {
		if prior, ok := s.byID[priorID]; ok {
			prior.Current = false
		}
	}

	stored := *doc
	stored.Current = true
	s.byID[stored.ID] = &stored
	current[stored.Category] = stored.ID

	doc.Current = true
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[doc.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored := *doc
	stored.Current = existing.Current
	s.byID[doc.ID] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, docID id.DocumentID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *InMemoryStore) ListCurrent(_ context.Context, ownerID id.UserID) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Document
	for _, docID := range s.byUser[ownerID] {
		if doc, ok := s.byID[docID]; ok {
			copied := *doc
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}
