package token

import (
	"regexp"
	"strings"
	"time"

	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
)

// Status tracks the one-way credential lifecycle. There is no transition
// back to active.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

const dobLayout = "2006-01-02"

var (
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// Subject holds the identity attributes a credential attests to.
// Name, PAN, and DOB are mandatory at issuance; the rest are optional.
type Subject struct {
	Name    string `json:"name"`
	PAN     string `json:"pan"`
	DOB     string `json:"dob"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Normalize trims the subject fields and uppercases the PAN before
// validation.
func (s Subject) Normalize() Subject {
	return Subject{
		Name:    strings.TrimSpace(s.Name),
		PAN:     strings.ToUpper(strings.TrimSpace(s.PAN)),
		DOB:     strings.TrimSpace(s.DOB),
		Address: strings.TrimSpace(s.Address),
		Phone:   strings.TrimSpace(s.Phone),
		Email:   strings.TrimSpace(s.Email),
	}
}

// Validate applies the issuance rules in order, failing on the first
// violated rule rather than accumulating all of them.
func (s Subject) Validate() error {
	if s.Name == "" {
		return dErrors.NewValidation("name", "name is required")
	}
	if !panPattern.MatchString(s.PAN) {
		return dErrors.NewValidation("pan", "PAN must be 5 letters, 4 digits, 1 letter")
	}
	if s.DOB == "" {
		return dErrors.NewValidation("dob", "date of birth is required")
	}
	if _, err := time.Parse(dobLayout, s.DOB); err != nil {
		return dErrors.NewValidation("dob", "date of birth must be YYYY-MM-DD")
	}
	if s.Phone != "" && !phonePattern.MatchString(s.Phone) {
		return dErrors.NewValidation("phone", "phone must be a 10-digit mobile number starting 6-9")
	}
	return nil
}

// Field returns the subject attribute for a normalized data-field key, or
// "" when the key is unknown or the attribute is blank.
func (s Subject) Field(key string) string {
	switch key {
	case "name":
		return s.Name
	case "pan":
		return s.PAN
	case "dob":
		return s.DOB
	case "address":
		return s.Address
	case "phone":
		return s.Phone
	case "email":
		return s.Email
	}
	return ""
}

// Credential is a signed snapshot of identity attributes. Issuance does not
// revoke prior credentials; several may be active for one owner at once.
type Credential struct {
	ID            id.TokenID
	OwnerID       id.UserID
	Subject       Subject
	Status        Status
	Proof         string // compact JWS over the subject snapshot
	IssuedAt      time.Time
	RevokedAt     *time.Time
	RevokedReason string
}

// MaskPAN hides all but the last four characters of a PAN for audit and
// display payloads.
func MaskPAN(pan string) string {
	if len(pan) <= 4 {
		return pan
	}
	return strings.Repeat("*", len(pan)-4) + pan[len(pan)-4:]
}
