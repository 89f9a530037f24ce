package audit

import (
	"context"
	"time"

	id "kycvault/pkg/domain"
)

// Query narrows a trail listing. Before is a timestamp cursor for
// pagination (zero means "from the newest"); Limit caps the page size.
type Query struct {
	Before  time.Time
	Actions []Action
	Limit   int
}

// DefaultPageSize bounds listings so the trail is never returned unbounded.
const DefaultPageSize = 50

// Store persists audit entries. Append-only: no update or delete exists on
// purpose.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListBySubject(ctx context.Context, subjectID string, q Query) ([]*Entry, error)
	ListByOwner(ctx context.Context, ownerID id.UserID, q Query) ([]*Entry, error)
}
