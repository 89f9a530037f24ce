package user

import (
	"time"

	id "kycvault/pkg/domain"
)

// User is an identity owner. Verification status is derived from the
// evidence registry, never stored here.
type User struct {
	ID           id.UserID
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	// RegistrationStep is the sign-up wizard step the user is currently
	// on, persisted so the flow survives reconnects and cannot be skipped.
	RegistrationStep string
	CreatedAt        time.Time
}
