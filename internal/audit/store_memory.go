package audit

import (
	"context"
	"sort"
	"sync"

	id "kycvault/pkg/domain"
)

// InMemoryStore keeps the trail in a slice. It favors clarity over
// performance and backs unit tests and dev mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	seq     uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.Seq = s.seq
	stored := *entry
	s.entries = append(s.entries, &stored)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string, q Query) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(q, func(e *Entry) bool { return e.SubjectID == subjectID }), nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID, q Query) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(q, func(e *Entry) bool { return e.OwnerID == ownerID }), nil
}

// filter applies the query and returns copies, newest first with insertion
// sequence breaking timestamp ties.
func (s *InMemoryStore) filter(q Query, match func(*Entry) bool) []*Entry {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var out []*Entry
	for _, e := range s.entries {
		if !match(e) {
			continue
		}
		if !q.Before.IsZero() && !e.Timestamp.Before(q.Before) {
			continue
		}
		if len(q.Actions) > 0 && !containsAction(q.Actions, e.Action) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func containsAction(actions []Action, a Action) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}
