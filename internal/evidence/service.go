package evidence

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kycvault/internal/audit"
	"kycvault/internal/platform/metrics"
	"kycvault/internal/platform/unitofwork"
	id "kycvault/pkg/domain"
	domainerrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/sentinel"
	"kycvault/pkg/requestcontext"
)

// requiredCategories are the document categories a holder must have on
// file before their KYC profile is considered complete.
var requiredCategories = []Category{
	CategoryAadhaarFront,
	CategoryAadhaarBack,
	CategoryPANCard,
	CategorySelfie,
}

// Service manages the evidence registry: uploads, verification
// write-backs, and profile completeness.
type Service struct {
	store   Store
	runner  unitofwork.Runner
	auditor *audit.Logger
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger sets the audit trail logger.
func WithAuditLogger(a *audit.Logger) Option {
	return func(s *Service) { s.auditor = a }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs an evidence service.
func NewService(store Store, runner unitofwork.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		runner: runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadInput describes a document upload.
type UploadInput struct {
	OwnerID    id.UserID
	Category   string
	StorageRef string
}

// RecordUpload registers a newly uploaded document as the current
// evidence for its category, superseding any prior upload.
func (s *Service) RecordUpload(ctx context.Context, in UploadInput) (*Document, error) {
	category, err := ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.StorageRef) == "" {
		return nil, domainerrors.NewValidation("storage_ref", "storage reference is required")
	}
	if in.OwnerID.IsNil() {
		return nil, domainerrors.NewValidation("owner_id", "owner is required")
	}

	doc := &Document{
		ID:         id.NewDocumentID(),
		OwnerID:    in.OwnerID,
		Category:   category,
		StorageRef: in.StorageRef,
		Status:     StatusUploaded,
		UploadedAt: requestcontext.Now(ctx),
	}
	// Supersede-then-insert must commit atomically, and the unit of work
	// serializes concurrent uploads for the same holder.
	err = s.runner.RunInTx(ctx, in.OwnerID.String(), func(ctx context.Context) error {
		if err := s.store.Save(ctx, doc); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return domainerrors.New(domainerrors.CodeConflict, "a concurrent upload for this category is in progress")
			}
			return domainerrors.Wrap(err, domainerrors.CodeStorageUnavailable, "save document")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DocumentsUploaded.Inc()
	}
	s.logger.InfoContext(ctx, "document uploaded",
		slog.String("document_id", doc.ID.String()),
		slog.String("owner_id", doc.OwnerID.String()),
		slog.String("category", string(doc.Category)),
	)
	return doc, nil
}

// VerificationInput carries the outcome of an external verification
// check for a document.
type VerificationInput struct {
	DocumentID id.DocumentID
	Verified   bool
	Issuer     string
	TrustScore int
}

// RecordVerification applies a verification outcome to a document.
// Re-verification is last-write-wins. A successful verification is
// recorded on the owner's audit trail.
func (s *Service) RecordVerification(ctx context.Context, in VerificationInput) (*Document, error) {
	doc, err := s.store.FindByID(ctx, in.DocumentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "document not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeStorageUnavailable, "find document")
	}

	now := requestcontext.Now(ctx)
	if in.Verified {
		doc.Status = StatusVerified
		doc.Issuer = in.Issuer
		doc.TrustScore = in.TrustScore
		doc.VerifiedAt = &now
	} else {
		doc.Status = StatusRejected
		doc.Issuer = in.Issuer
		doc.TrustScore = 0
		doc.VerifiedAt = nil
	}

	err = s.runner.RunInTx(ctx, doc.OwnerID.String(), func(ctx context.Context) error {
		if err := s.store.Update(ctx, doc); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeStorageUnavailable, "update document")
		}
		if in.Verified && s.auditor != nil {
			_, err := s.auditor.Append(ctx, doc.ID.String(), doc.OwnerID, audit.ActionTokenVerified, doc.OwnerID.String(), audit.TokenVerifiedDetail{
				Issuer:   in.Issuer,
				Category: string(doc.Category),
				Score:    in.TrustScore,
				Verified: true,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "document verification recorded",
		slog.String("document_id", doc.ID.String()),
		slog.Bool("verified", in.Verified),
		slog.String("issuer", in.Issuer),
	)
	return doc, nil
}

// ListCurrent returns the holder's current document per category.
func (s *Service) ListCurrent(ctx context.Context, ownerID id.UserID) ([]*Document, error) {
	docs, err := s.store.ListCurrent(ctx, ownerID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeStorageUnavailable, "list documents")
	}
	return docs, nil
}

// ProfileStatus summarizes a holder's KYC completeness.
type ProfileStatus struct {
	Complete          bool       `json:"complete"`
	UploadedCount     int        `json:"uploaded_count"`
	MissingCategories []Category `json:"missing_categories"`
	LastUploadedAt    *time.Time `json:"last_uploaded_at,omitempty"`
}

// Status reports whether the holder has every required document
// category on file.
func (s *Service) Status(ctx context.Context, ownerID id.UserID) (*ProfileStatus, error) {
	docs, err := s.ListCurrent(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	have := make(map[Category]bool, len(docs))
	status := &ProfileStatus{UploadedCount: len(docs)}
	for _, doc := range docs {
		have[doc.Category] = true
		if status.LastUploadedAt == nil || doc.UploadedAt.After(*status.LastUploadedAt) {
			t := doc.UploadedAt
			status.LastUploadedAt = &t
		}
	}
	for _, category := range requiredCategories {
		if !have[category] {
			status.MissingCategories = append(status.MissingCategories, category)
		}
	}
	status.Complete = len(status.MissingCategories) == 0
	return status, nil
}
