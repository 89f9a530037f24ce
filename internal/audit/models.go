package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "kycvault/pkg/domain"
)

// Action is the closed enumeration of auditable lifecycle transitions.
// Extend only by adding new values; never repurpose existing ones.
type Action string

const (
	ActionTokenIssued      Action = "TOKEN_ISSUED"
	ActionTokenRevoked     Action = "TOKEN_REVOKED"
	ActionTokenVerified    Action = "TOKEN_VERIFIED"
	ActionConsentRequested Action = "CONSENT_REQUESTED"
	ActionConsentApproved  Action = "CONSENT_APPROVED"
	ActionConsentRejected  Action = "CONSENT_REJECTED"
	ActionConsentRevoked   Action = "CONSENT_REVOKED"
)

var validActions = map[Action]bool{
	ActionTokenIssued:      true,
	ActionTokenRevoked:     true,
	ActionTokenVerified:    true,
	ActionConsentRequested: true,
	ActionConsentApproved:  true,
	ActionConsentRejected:  true,
	ActionConsentRevoked:   true,
}

// IsValid checks the action against the closed enumeration.
func (a Action) IsValid() bool { return validActions[a] }

// Detail is the tagged union of per-action payloads. Each action carries a
// dedicated struct so the payload shape is checked at compile time instead of
// living in an open-ended map.
type Detail interface {
	auditDetail()
}

type TokenIssuedDetail struct {
	HolderName string `json:"holder_name"`
	PANMasked  string `json:"pan_masked"`
}

type TokenRevokedDetail struct {
	Reason string `json:"reason,omitempty"`
}

type TokenVerifiedDetail struct {
	Issuer   string `json:"issuer"`
	Category string `json:"category"`
	Score    int    `json:"score"`
	Verified bool   `json:"verified"`
}

type ConsentRequestedDetail struct {
	Requester string   `json:"requester"`
	Fields    []string `json:"fields"`
	Purpose   string   `json:"purpose,omitempty"`
}

type ConsentApprovedDetail struct {
	Requester string     `json:"requester"`
	Fields    []string   `json:"fields"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type ConsentRejectedDetail struct {
	Reason string `json:"reason,omitempty"`
}

type ConsentRevokedDetail struct {
	Requester string `json:"requester"`
}

func (TokenIssuedDetail) auditDetail()      {}
func (TokenRevokedDetail) auditDetail()     {}
func (TokenVerifiedDetail) auditDetail()    {}
func (ConsentRequestedDetail) auditDetail() {}
func (ConsentApprovedDetail) auditDetail()  {}
func (ConsentRejectedDetail) auditDetail()  {}
func (ConsentRevokedDetail) auditDetail()   {}

// Entry is one append-only record in the trail. Never mutated after creation;
// ordering is by Timestamp with Seq breaking ties in insertion order.
type Entry struct {
	ID        uuid.UUID
	SubjectID string
	OwnerID   id.UserID
	Action    Action
	ActorID   string
	Detail    Detail
	Timestamp time.Time
	Seq       uint64
}

// EncodeDetail serializes a detail payload for persistence.
func EncodeDetail(d Detail) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// DecodeDetail rebuilds the typed payload for an action from stored JSON.
func DecodeDetail(action Action, raw []byte) (Detail, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch action {
	case ActionTokenIssued:
		var d TokenIssuedDetail
		return d, json.Unmarshal(raw, &d)
	case ActionTokenRevoked:
		var d TokenRevokedDetail
		return d, json.Unmarshal(raw, &d)
	case ActionTokenVerified:
		var d TokenVerifiedDetail
		return d, json.Unmarshal(raw, &d)
	case ActionConsentRequested:
		var d ConsentRequestedDetail
		return d, json.Unmarshal(raw, &d)
	case ActionConsentApproved:
		var d ConsentApprovedDetail
		return d, json.Unmarshal(raw, &d)
	case ActionConsentRejected:
		var d ConsentRejectedDetail
		return d, json.Unmarshal(raw, &d)
	case ActionConsentRevoked:
		var d ConsentRevokedDetail
		return d, json.Unmarshal(raw, &d)
	default:
		return nil, fmt.Errorf("unknown audit action %q", action)
	}
}
