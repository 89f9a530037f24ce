package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycvault/internal/platform/kafka"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/requestcontext"
)

type capturingPublisher struct {
	messages []*kafka.Message
}

func (p *capturingPublisher) ProduceAsync(msg *kafka.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

type AuditLoggerSuite struct {
	suite.Suite
	store  *InMemoryStore
	logger *Logger
}

func TestAuditLoggerSuite(t *testing.T) {
	suite.Run(t, new(AuditLoggerSuite))
}

func (s *AuditLoggerSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.logger = NewLogger(s.store)
}

func (s *AuditLoggerSuite) append(ctx context.Context, subjectID string, ownerID id.UserID, action Action, detail Detail) *Entry {
	entry, err := s.logger.Append(ctx, subjectID, ownerID, action, ownerID.String(), detail)
	s.Require().NoError(err)
	return entry
}

func (s *AuditLoggerSuite) TestAppend() {
	ctx := context.Background()
	ownerID := id.NewUserID()

	s.Run("stamps id, sequence, and context time", func() {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		entry := s.append(requestcontext.WithTime(ctx, now), "subject-1", ownerID, ActionTokenIssued, TokenIssuedDetail{HolderName: "Asha Rao"})
		s.Equal(now, entry.Timestamp)
		s.NotZero(entry.ID)
		s.NotZero(entry.Seq)
	})

	s.Run("rejects actions outside the enumeration", func() {
		_, err := s.logger.Append(ctx, "subject-1", ownerID, Action("TOKEN_EATEN"), "actor", nil)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *AuditLoggerSuite) TestListOrdering() {
	ctx := context.Background()
	ownerID := id.NewUserID()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.Run("newest first with sequence breaking timestamp ties", func() {
		s.append(requestcontext.WithTime(ctx, base), "subject-1", ownerID, ActionTokenIssued, TokenIssuedDetail{})
		// Same timestamp: insertion order must decide.
		s.append(requestcontext.WithTime(ctx, base.Add(time.Minute)), "subject-1", ownerID, ActionTokenVerified, TokenVerifiedDetail{})
		s.append(requestcontext.WithTime(ctx, base.Add(time.Minute)), "subject-1", ownerID, ActionTokenRevoked, TokenRevokedDetail{})

		entries, err := s.logger.ListBySubject(ctx, "subject-1", Query{})
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		s.Equal(ActionTokenRevoked, entries[0].Action)
		s.Equal(ActionTokenVerified, entries[1].Action)
		s.Equal(ActionTokenIssued, entries[2].Action)
	})
}

func (s *AuditLoggerSuite) TestListFilters() {
	ctx := context.Background()
	ownerID := id.NewUserID()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.append(requestcontext.WithTime(ctx, base.Add(time.Duration(i)*time.Hour)), "subject-1", ownerID, ActionConsentRequested, ConsentRequestedDetail{Requester: "acme"})
	}
	s.append(requestcontext.WithTime(ctx, base.Add(6*time.Hour)), "subject-1", ownerID, ActionConsentApproved, ConsentApprovedDetail{Requester: "acme"})

	s.Run("timestamp cursor pages backwards without overlap", func() {
		first, err := s.logger.ListBySubject(ctx, "subject-1", Query{Limit: 3})
		s.Require().NoError(err)
		s.Require().Len(first, 3)

		second, err := s.logger.ListBySubject(ctx, "subject-1", Query{
			Before: first[len(first)-1].Timestamp,
			Limit:  3,
		})
		s.Require().NoError(err)
		s.Require().Len(second, 3)

		seen := make(map[uint64]bool)
		for _, e := range append(first, second...) {
			s.False(seen[e.Seq], "entry %d appeared twice", e.Seq)
			seen[e.Seq] = true
		}
	})

	s.Run("action filter narrows the result", func() {
		entries, err := s.logger.ListBySubject(ctx, "subject-1", Query{
			Actions: []Action{ActionConsentApproved},
		})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(ActionConsentApproved, entries[0].Action)
	})

	s.Run("owner listing spans subjects", func() {
		s.append(ctx, "subject-2", ownerID, ActionTokenIssued, TokenIssuedDetail{})

		entries, err := s.logger.ListByOwner(ctx, ownerID, Query{})
		s.Require().NoError(err)
		s.Len(entries, 7)
	})
}

func (s *AuditLoggerSuite) TestMirror() {
	ctx := context.Background()
	ownerID := id.NewUserID()

	s.Run("entries are mirrored to the stream fire-and-forget", func() {
		publisher := &capturingPublisher{}
		logger := NewLogger(s.store, WithMirror(publisher))

		entry, err := logger.Append(ctx, "subject-1", ownerID, ActionTokenIssued, "actor", TokenIssuedDetail{HolderName: "Asha Rao"})
		s.Require().NoError(err)

		s.Require().Len(publisher.messages, 1)
		s.Equal(MirrorTopic, publisher.messages[0].Topic)
		s.Equal([]byte("subject-1"), publisher.messages[0].Key)

		var payload map[string]any
		s.Require().NoError(json.Unmarshal(publisher.messages[0].Value, &payload))
		s.Equal(entry.ID.String(), payload["id"])
		s.Equal(string(ActionTokenIssued), payload["action"])
	})
}
