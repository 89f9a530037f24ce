package consent

import (
	"fmt"
	"strings"
	"time"

	id "kycvault/pkg/domain"
)

// Status tracks the consent-request lifecycle. PENDING is initial;
// REJECTED, REVOKED, and EXPIRED are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusRevoked || s == StatusExpired
}

// Request is a requester's ask to access a named field set from a
// holder. The field set is fixed at creation and never mutated; Version
// guards every update with optimistic concurrency control.
type Request struct {
	ID            id.ConsentID
	OwnerID       id.UserID
	Requester     string
	RequesterName string
	Fields        []string
	Purpose       string
	Status        Status
	CreatedAt     time.Time
	ApprovedAt    *time.Time
	ExpiresAt     *time.Time
	Version       int
}

// Live reports whether the grant authorizes access at the given instant.
// An approved request past its expiry is treated as expired even before
// the stored status is written back.
func (r *Request) Live(now time.Time) bool {
	if r.Status != StatusApproved {
		return false
	}
	return r.ExpiresAt == nil || !now.After(*r.ExpiresAt)
}

// IncompleteEvidenceError refuses an approval whose evidence does not
// cover the requested field set. It is the designed outcome of an unmet
// precondition, distinguishable from system errors, and causes no state
// change.
type IncompleteEvidenceError struct {
	MissingDocuments []string
	MissingData      []string
}

func (e *IncompleteEvidenceError) Error() string {
	var parts []string
	if len(e.MissingDocuments) > 0 {
		parts = append(parts, "missing documents: "+strings.Join(e.MissingDocuments, ", "))
	}
	if len(e.MissingData) > 0 {
		parts = append(parts, "missing data: "+strings.Join(e.MissingData, ", "))
	}
	return fmt.Sprintf("incomplete evidence: %s", strings.Join(parts, "; "))
}
