package evidence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycvault/internal/audit"
	"kycvault/internal/platform/unitofwork"
	id "kycvault/pkg/domain"
	domainerrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/sentinel"
	"kycvault/pkg/requestcontext"
)

// =============================================================================
// Evidence Service Test Suite
// =============================================================================
// Justification for unit tests: the registry enforces the one-current-document
// invariant and the verification write-back contract, both of which are
// awkward to pin down through HTTP-level tests.

type EvidenceServiceSuite struct {
	suite.Suite
	store      *InMemoryStore
	auditStore *audit.InMemoryStore
	service    *Service
}

func TestEvidenceServiceSuite(t *testing.T) {
	suite.Run(t, new(EvidenceServiceSuite))
}

func (s *EvidenceServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.service = NewService(
		s.store,
		unitofwork.NewMemory(),
		WithAuditLogger(audit.NewLogger(s.auditStore)),
	)
}

// =============================================================================
// RecordUpload Tests
// =============================================================================

func (s *EvidenceServiceSuite) TestRecordUpload() {
	ctx := context.Background()
	ownerID := id.NewUserID()

	s.Run("stores document as current with uploaded status", func() {
		doc, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   "pan_card",
			StorageRef: "s3://bucket/pan.jpg",
		})
		s.Require().NoError(err)
		s.Equal(CategoryPANCard, doc.Category)
		s.Equal(StatusUploaded, doc.Status)
		s.True(doc.Current)
		s.False(doc.ID.IsNil())
	})

	s.Run("normalizes category casing and whitespace", func() {
		doc, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   "  Aadhaar_Front ",
			StorageRef: "s3://bucket/front.jpg",
		})
		s.Require().NoError(err)
		s.Equal(CategoryAadhaarFront, doc.Category)
	})

	s.Run("re-upload supersedes prior document in same category", func() {
		first, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   "selfie",
			StorageRef: "s3://bucket/selfie-1.jpg",
		})
		s.Require().NoError(err)

		second, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   "selfie",
			StorageRef: "s3://bucket/selfie-2.jpg",
		})
		s.Require().NoError(err)

		prior, err := s.store.FindByID(ctx, first.ID)
		s.Require().NoError(err)
		s.False(prior.Current, "superseded document should remain retrievable but not current")

		docs, err := s.service.ListCurrent(ctx, ownerID)
		s.Require().NoError(err)
		var selfies int
		for _, d := range docs {
			if d.Category == CategorySelfie {
				selfies++
				s.Equal(second.ID, d.ID)
			}
		}
		s.Equal(1, selfies)
	})

	s.Run("unknown but well-formed category is accepted", func() {
		doc, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   "utility_bill",
			StorageRef: "s3://bucket/bill.pdf",
		})
		s.Require().NoError(err)
		s.Equal(Category("utility_bill"), doc.Category)
	})

	s.Run("malformed category is rejected", func() {
		_, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   "pan card!",
			StorageRef: "s3://bucket/x.jpg",
		})
		s.Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidInput))
	})

	s.Run("missing storage reference is rejected", func() {
		_, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:  ownerID,
			Category: "passport",
		})
		s.Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
	})
}

// faultStore forces store-level failures the in-memory implementation
// never produces on its own.
type faultStore struct {
	Store
	saveErr error
	findErr error
}

func (f *faultStore) Save(ctx context.Context, doc *Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, doc)
}

func (f *faultStore) FindByID(ctx context.Context, docID id.DocumentID) (*Document, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Store.FindByID(ctx, docID)
}

func (s *EvidenceServiceSuite) TestRecordUploadStoreFailures() {
	ctx := context.Background()
	input := UploadInput{
		OwnerID:    id.NewUserID(),
		Category:   "pan_card",
		StorageRef: "s3://bucket/pan.jpg",
	}

	s.Run("racing upload for the same category surfaces as conflict", func() {
		service := NewService(&faultStore{Store: s.store, saveErr: sentinel.ErrConflict}, unitofwork.NewMemory())
		_, err := service.RecordUpload(ctx, input)
		s.Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))
	})

	s.Run("storage outage surfaces as storage unavailable", func() {
		service := NewService(&faultStore{Store: s.store, saveErr: errors.New("connection refused")}, unitofwork.NewMemory())
		_, err := service.RecordUpload(ctx, input)
		s.Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeStorageUnavailable))
	})
}

// =============================================================================
// RecordVerification Tests
// =============================================================================

func (s *EvidenceServiceSuite) TestRecordVerification() {
	ctx := context.Background()
	ownerID := id.NewUserID()

	upload := func(category string) *Document {
		doc, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   category,
			StorageRef: "s3://bucket/" + category,
		})
		s.Require().NoError(err)
		return doc
	}

	s.Run("successful verification updates document and appends audit entry", func() {
		doc := upload("pan_card")

		now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
		verified, err := s.service.RecordVerification(requestcontext.WithTime(ctx, now), VerificationInput{
			DocumentID: doc.ID,
			Verified:   true,
			Issuer:     "income-tax-dept",
			TrustScore: 93,
		})
		s.Require().NoError(err)
		s.Equal(StatusVerified, verified.Status)
		s.Equal("income-tax-dept", verified.Issuer)
		s.Require().NotNil(verified.VerifiedAt)
		s.Equal(now, *verified.VerifiedAt)

		entries, err := s.auditStore.ListBySubject(ctx, doc.ID.String(), audit.Query{})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionTokenVerified, entries[0].Action)
	})

	s.Run("failed verification marks rejected without audit entry", func() {
		doc := upload("passport")

		rejected, err := s.service.RecordVerification(ctx, VerificationInput{
			DocumentID: doc.ID,
			Verified:   false,
			Issuer:     "passport-seva",
		})
		s.Require().NoError(err)
		s.Equal(StatusRejected, rejected.Status)
		s.Nil(rejected.VerifiedAt)

		entries, err := s.auditStore.ListBySubject(ctx, doc.ID.String(), audit.Query{})
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Run("re-verification is last-write-wins", func() {
		doc := upload("driving_license")

		_, err := s.service.RecordVerification(ctx, VerificationInput{
			DocumentID: doc.ID,
			Verified:   true,
			Issuer:     "rto",
			TrustScore: 80,
		})
		s.Require().NoError(err)

		second, err := s.service.RecordVerification(ctx, VerificationInput{
			DocumentID: doc.ID,
			Verified:   true,
			Issuer:     "rto",
			TrustScore: 95,
		})
		s.Require().NoError(err)
		s.Equal(95, second.TrustScore)
	})

	s.Run("unknown document returns not found", func() {
		_, err := s.service.RecordVerification(ctx, VerificationInput{
			DocumentID: id.NewDocumentID(),
			Verified:   true,
		})
		s.Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})

	s.Run("storage outage during lookup is not reported as missing", func() {
		service := NewService(&faultStore{Store: s.store, findErr: errors.New("connection refused")}, unitofwork.NewMemory())
		_, err := service.RecordVerification(ctx, VerificationInput{
			DocumentID: id.NewDocumentID(),
			Verified:   true,
		})
		s.Error(err)
		s.False(domainerrors.HasCode(err, domainerrors.CodeNotFound))
		s.True(domainerrors.HasCode(err, domainerrors.CodeStorageUnavailable))
	})
}

// =============================================================================
// Status Tests
// =============================================================================

func (s *EvidenceServiceSuite) TestStatus() {
	ctx := context.Background()
	ownerID := id.NewUserID()

	s.Run("empty profile reports all required categories missing", func() {
		status, err := s.service.Status(ctx, ownerID)
		s.Require().NoError(err)
		s.False(status.Complete)
		s.Equal(0, status.UploadedCount)
		s.ElementsMatch(
			[]Category{CategoryAadhaarFront, CategoryAadhaarBack, CategoryPANCard, CategorySelfie},
			status.MissingCategories,
		)
	})

	s.Run("partial profile reports the remaining gap", func() {
		for _, category := range []string{"aadhaar_front", "aadhaar_back", "selfie"} {
			_, err := s.service.RecordUpload(ctx, UploadInput{
				OwnerID:    ownerID,
				Category:   category,
				StorageRef: "s3://bucket/" + category,
			})
			s.Require().NoError(err)
		}

		status, err := s.service.Status(ctx, ownerID)
		s.Require().NoError(err)
		s.False(status.Complete)
		s.Equal([]Category{CategoryPANCard}, status.MissingCategories)
	})

	s.Run("complete profile", func() {
		_, err := s.service.RecordUpload(ctx, UploadInput{
			OwnerID:    ownerID,
			Category:   "pan_card",
			StorageRef: "s3://bucket/pan.jpg",
		})
		s.Require().NoError(err)

		status, err := s.service.Status(ctx, ownerID)
		s.Require().NoError(err)
		s.True(status.Complete)
		s.Empty(status.MissingCategories)
		s.NotNil(status.LastUploadedAt)
	})
}
