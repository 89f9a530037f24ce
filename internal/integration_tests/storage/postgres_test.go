//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kycvault/internal/audit"
	"kycvault/internal/consent"
	"kycvault/internal/evidence"
	"kycvault/internal/token"
	"kycvault/internal/user"
	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
	"kycvault/pkg/testutil/containers"
)

// These tests run the Postgres stores against a real database. They verify
// the behavior the in-memory stores are tested for where it depends on SQL:
// unique indexes, version compare-and-swap, and trail ordering.

type PostgresStoreSuite struct {
	suite.Suite

	pg      *containers.PostgresContainer
	ctx     context.Context
	ownerID id.UserID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"audit_entries", "consent_requests", "kyc_tokens", "evidence_documents", "users"))

	// every fixture row hangs off one owner
	s.ownerID = id.NewUserID()
	s.Require().NoError(user.NewPostgres(s.pg.DB).Create(s.ctx, &user.User{
		ID:           s.ownerID,
		Name:         "Asha Rao",
		Email:        "asha@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}))
}

func (s *PostgresStoreSuite) TestUserEmailUniqueness() {
	store := user.NewPostgres(s.pg.DB)

	err := store.Create(s.ctx, &user.User{
		ID:           id.NewUserID(),
		Name:         "Impostor",
		Email:        "ASHA@example.com",
		PasswordHash: "y",
		CreatedAt:    time.Now().UTC(),
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	found, err := store.FindByEmail(s.ctx, "Asha@Example.com")
	s.Require().NoError(err)
	s.Equal(s.ownerID, found.ID)
}

func (s *PostgresStoreSuite) TestTokenActiveOrdering() {
	store := token.NewPostgres(s.pg.DB)
	base := time.Now().UTC().Truncate(time.Microsecond)

	older := &token.Credential{
		ID:       id.NewTokenID(),
		OwnerID:  s.ownerID,
		Subject:  token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"},
		Status:   token.StatusActive,
		Proof:    "proof-1",
		IssuedAt: base,
	}
	newer := &token.Credential{
		ID:       id.NewTokenID(),
		OwnerID:  s.ownerID,
		Subject:  token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"},
		Status:   token.StatusActive,
		Proof:    "proof-2",
		IssuedAt: base.Add(time.Second),
	}
	s.Require().NoError(store.Save(s.ctx, older))
	s.Require().NoError(store.Save(s.ctx, newer))

	active, err := store.FindActive(s.ctx, s.ownerID)
	s.Require().NoError(err)
	s.Equal(newer.ID, active.ID)

	revokedAt := base.Add(2 * time.Second)
	newer.Status = token.StatusRevoked
	newer.RevokedAt = &revokedAt
	newer.RevokedReason = "rotation"
	s.Require().NoError(store.Update(s.ctx, newer))

	active, err = store.FindActive(s.ctx, s.ownerID)
	s.Require().NoError(err)
	s.Equal(older.ID, active.ID)
}

func (s *PostgresStoreSuite) TestConsentVersionCAS() {
	store := consent.NewPostgres(s.pg.DB)

	req := &consent.Request{
		ID:        id.NewConsentID(),
		OwnerID:   s.ownerID,
		Requester: "acme-bank",
		Fields:    []string{"name", "pan_card"},
		Status:    consent.StatusPending,
		CreatedAt: time.Now().UTC(),
		Version:   1,
	}
	s.Require().NoError(store.Create(s.ctx, req))

	first := *req
	first.Status = consent.StatusApproved
	s.Require().NoError(store.Update(s.ctx, &first))

	stale := *req
	stale.Status = consent.StatusRejected
	s.Require().ErrorIs(store.Update(s.ctx, &stale), sentinel.ErrConflict)

	stored, err := store.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(consent.StatusApproved, stored.Status)
	s.Equal(2, stored.Version)
}

func (s *PostgresStoreSuite) TestEvidenceSupersede() {
	store := evidence.NewPostgres(s.pg.DB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &evidence.Document{
		ID:         id.NewDocumentID(),
		OwnerID:    s.ownerID,
		Category:   evidence.CategoryPANCard,
		StorageRef: "s3://docs/pan-1",
		Status:     evidence.StatusUploaded,
		UploadedAt: now,
	}
	s.Require().NoError(store.Save(s.ctx, first))

	second := &evidence.Document{
		ID:         id.NewDocumentID(),
		OwnerID:    s.ownerID,
		Category:   evidence.CategoryPANCard,
		StorageRef: "s3://docs/pan-2",
		Status:     evidence.StatusUploaded,
		UploadedAt: now.Add(time.Second),
	}
	s.Require().NoError(store.Save(s.ctx, second))

	current, err := store.ListCurrent(s.ctx, s.ownerID)
	s.Require().NoError(err)
	s.Require().Len(current, 1)
	s.Equal(second.ID, current[0].ID)
}

func (s *PostgresStoreSuite) TestAuditTrailOrdering() {
	store := audit.NewPostgres(s.pg.DB)
	now := time.Now().UTC().Truncate(time.Microsecond)
	subjectID := uuid.NewString()

	actions := []audit.Action{
		audit.ActionTokenIssued,
		audit.ActionConsentRequested,
		audit.ActionConsentApproved,
	}
	for i, action := range actions {
		entry := &audit.Entry{
			ID:        uuid.New(),
			SubjectID: subjectID,
			OwnerID:   s.ownerID,
			Action:    action,
			ActorID:   s.ownerID.String(),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		s.Require().NoError(store.Append(s.ctx, entry))
		s.NotZero(entry.Seq)
	}

	entries, err := store.ListBySubject(s.ctx, subjectID, audit.Query{})
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(audit.ActionConsentApproved, entries[0].Action)
	s.Equal(audit.ActionTokenIssued, entries[2].Action)

	page, err := store.ListBySubject(s.ctx, subjectID, audit.Query{
		Before:  entries[0].Timestamp,
		Actions: []audit.Action{audit.ActionTokenIssued},
	})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(audit.ActionTokenIssued, page[0].Action)
}
