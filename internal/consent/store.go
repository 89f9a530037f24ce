package consent

import (
	"context"

	id "kycvault/pkg/domain"
)

// Store persists consent requests. Update applies optimistic concurrency
// control on Request.Version: the write succeeds only when the stored
// version matches, otherwise sentinel.ErrConflict is returned and the
// caller may reload and retry.
type Store interface {
	// Create inserts a new pending request.
	Create(ctx context.Context, request *Request) error
	// FindByID returns a request by id, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, consentID id.ConsentID) (*Request, error)
	// Update writes a transition guarded by the request's Version. On
	// success the in-memory Version is advanced to the stored value.
	Update(ctx context.Context, request *Request) error
	// ListByOwner returns the owner's requests, newest first, optionally
	// filtered by status ("" means all).
	ListByOwner(ctx context.Context, ownerID id.UserID, status Status) ([]*Request, error)
}
