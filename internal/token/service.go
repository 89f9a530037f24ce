package token

import (
	"context"
	"errors"
	"log/slog"

	"kycvault/internal/audit"
	"kycvault/internal/platform/metrics"
	"kycvault/internal/platform/tracing"
	"kycvault/internal/platform/unitofwork"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/sentinel"
	"kycvault/pkg/requestcontext"
)

// Service owns the credential lifecycle: issuance, lookup, and
// revocation. Every successful transition is written to the audit trail
// in the same unit of work as the state change.
type Service struct {
	store   Store
	signer  *Signer
	runner  unitofwork.Runner
	auditor *audit.Logger
	metrics *metrics.Metrics
	tracer  tracing.Tracer
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

// WithTracer sets the tracer.
func WithTracer(t tracing.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs a credential lifecycle service.
func NewService(store Store, signer *Signer, runner unitofwork.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		signer: signer,
		runner: runner,
		tracer: tracing.NewNoop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue validates the subject and creates a new active credential.
// Prior active credentials for the same owner stay active.
func (s *Service) Issue(ctx context.Context, ownerID id.UserID, subject Subject) (_ *Credential, err error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanTokenIssue,
		tracing.String("owner_id", ownerID.String()))
	defer func() { span.End(err) }()

	if ownerID.IsNil() {
		return nil, dErrors.NewValidation("owner_id", "owner is required")
	}
	subject = subject.Normalize()
	if err := subject.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	credential := &Credential{
		ID:       id.NewTokenID(),
		OwnerID:  ownerID,
		Subject:  subject,
		Status:   StatusActive,
		IssuedAt: now,
	}
	credential.Proof, err = s.signer.Sign(credential.ID, ownerID, subject, now)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, ownerID.String(), func(ctx context.Context) error {
		if err := s.store.Save(ctx, credential); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "save credential")
		}
		if s.auditor != nil {
			_, err := s.auditor.Append(ctx, credential.ID.String(), ownerID, audit.ActionTokenIssued, ownerID.String(), audit.TokenIssuedDetail{
				HolderName: subject.Name,
				PANMasked:  MaskPAN(subject.PAN),
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}
	s.logger.InfoContext(ctx, "credential issued",
		slog.String("token_id", credential.ID.String()),
		slog.String("owner_id", ownerID.String()),
	)
	return credential, nil
}

// Revoke transitions a credential to revoked. The transition is one-way
// and not idempotent: revoking an already-revoked credential is an error
// so callers can detect races.
func (s *Service) Revoke(ctx context.Context, tokenID id.TokenID, actorID string, reason string) (_ *Credential, err error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanTokenRevoke,
		tracing.String("token_id", tokenID.String()))
	defer func() { span.End(err) }()

	credential, err := s.store.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "find credential")
	}
	if credential.Status == StatusRevoked {
		return nil, dErrors.New(dErrors.CodeAlreadyRevoked, "credential is already revoked")
	}

	now := requestcontext.Now(ctx)
	credential.Status = StatusRevoked
	credential.RevokedAt = &now
	credential.RevokedReason = reason

	err = s.runner.RunInTx(ctx, tokenID.String(), func(ctx context.Context) error {
		// The store update is a compare-and-swap on status: a concurrent
		// revocation that committed after our read loses here, not above.
		if err := s.store.Update(ctx, credential); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrAlreadyRevoked):
				return dErrors.New(dErrors.CodeAlreadyRevoked, "credential is already revoked")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "credential not found")
			default:
				return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "update credential")
			}
		}
		if s.auditor != nil {
			_, err := s.auditor.Append(ctx, credential.ID.String(), credential.OwnerID, audit.ActionTokenRevoked, actorID, audit.TokenRevokedDetail{
				Reason: reason,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TokensRevoked.Inc()
	}
	s.logger.InfoContext(ctx, "credential revoked",
		slog.String("token_id", credential.ID.String()),
		slog.String("actor_id", actorID),
	)
	return credential, nil
}

// GetActive returns the owner's most recently issued active credential.
func (s *Service) GetActive(ctx context.Context, ownerID id.UserID) (*Credential, error) {
	credential, err := s.store.FindActive(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "find active credential")
	}
	return credential, nil
}

// Get returns a credential by id.
func (s *Service) Get(ctx context.Context, tokenID id.TokenID) (*Credential, error) {
	credential, err := s.store.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "find credential")
	}
	return credential, nil
}

// List returns every credential for the owner, newest first.
func (s *Service) List(ctx context.Context, ownerID id.UserID) ([]*Credential, error) {
	credentials, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list credentials")
	}
	return credentials, nil
}
