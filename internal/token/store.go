package token

import (
	"context"

	id "kycvault/pkg/domain"
)

// Store persists credentials. Implementations return sentinel errors from
// pkg/platform/sentinel; the service layer translates them into coded
// domain errors.
type Store interface {
	// Save inserts a newly issued credential.
	Save(ctx context.Context, credential *Credential) error
	// Update writes back a revocation, guarded on the stored row still
	// being active. Returns sentinel.ErrNotFound when the credential does
	// not exist and sentinel.ErrAlreadyRevoked when a concurrent
	// revocation won the race.
	Update(ctx context.Context, credential *Credential) error
	// FindByID returns a credential by its id.
	FindByID(ctx context.Context, tokenID id.TokenID) (*Credential, error)
	// FindActive returns the most recently issued credential still in
	// active status for the owner, or sentinel.ErrNotFound.
	FindActive(ctx context.Context, ownerID id.UserID) (*Credential, error)
	// ListByOwner returns every credential for the owner, newest first.
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*Credential, error)
}
