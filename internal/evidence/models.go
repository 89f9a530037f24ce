package evidence

import (
	"strings"
	"time"

	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
)

// Category classifies an uploaded proof artifact. The enumeration is closed;
// anything outside it is carried as-is and participates only in direct-lookup
// fulfillment matching, never in alias-table matching.
type Category string

const (
	CategoryAadhaarFront   Category = "aadhaar_front"
	CategoryAadhaarBack    Category = "aadhaar_back"
	CategoryPANCard        Category = "pan_card"
	CategoryPassport       Category = "passport"
	CategoryDrivingLicense Category = "driving_license"
	CategoryVoterID        Category = "voter_id"
	CategorySelfie         Category = "selfie"
)

var knownCategories = map[Category]bool{
	CategoryAadhaarFront:   true,
	CategoryAadhaarBack:    true,
	CategoryPANCard:        true,
	CategoryPassport:       true,
	CategoryDrivingLicense: true,
	CategoryVoterID:        true,
	CategorySelfie:         true,
}

// Known reports whether the category is part of the closed enumeration.
func (c Category) Known() bool { return knownCategories[c] }

func (c Category) String() string { return string(c) }

// ParseCategory normalizes external input to a category token. Unknown but
// well-formed tokens are accepted for storage (catch-all); blank or malformed
// input is rejected.
func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document category cannot be empty")
	}
	for _, r := range normalized {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document category: "+s)
		}
	}
	return Category(normalized), nil
}

// Status tracks the verification outcome of a document.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Document is one uploaded proof artifact. A new upload for the same
// (owner, category) supersedes the prior one; superseded documents are
// retained, never erased.
type Document struct {
	ID         id.DocumentID
	OwnerID    id.UserID
	Category   Category
	StorageRef string // opaque handle, never interpreted by the core
	Status     Status
	Issuer     string
	VerifiedAt *time.Time
	TrustScore int // 0-100, informational only
	UploadedAt time.Time
	Current    bool
}
