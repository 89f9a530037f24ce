package user

import (
	"context"

	id "kycvault/pkg/domain"
)

// Store persists users. Implementations return sentinel errors;
// services translate them into coded domain errors.
type Store interface {
	// Create inserts a new user. Returns sentinel.ErrConflict when the
	// email is already registered.
	Create(ctx context.Context, u *User) error
	// FindByID returns a user by id, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
	// FindByEmail returns a user by email, or sentinel.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Update writes profile changes back.
	Update(ctx context.Context, u *User) error
}
