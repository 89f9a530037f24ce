package consent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kycvault/internal/audit"
	"kycvault/internal/evidence"
	"kycvault/internal/fulfillment"
	"kycvault/internal/platform/metrics"
	"kycvault/internal/platform/tracing"
	"kycvault/internal/platform/unitofwork"
	"kycvault/internal/token"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/sentinel"
	strutil "kycvault/pkg/platform/strings"
	"kycvault/pkg/requestcontext"
)

// revokeAllConcurrency bounds the parallel sub-revocations in a batch.
const revokeAllConcurrency = 4

// EvidenceSource supplies the holder's current documents for
// fulfillment resolution.
type EvidenceSource interface {
	ListCurrent(ctx context.Context, ownerID id.UserID) ([]*evidence.Document, error)
}

// CredentialSource supplies the holder's active credential for
// fulfillment resolution. A not-found error means no active credential.
type CredentialSource interface {
	GetActive(ctx context.Context, ownerID id.UserID) (*token.Credential, error)
}

// Service owns consent-request state transitions. Approval is gated by
// the fulfillment resolver; every successful transition writes its audit
// entry in the same unit of work as the state change.
type Service struct {
	store       Store
	evidence    EvidenceSource
	credentials CredentialSource
	runner      unitofwork.Runner
	auditor     *audit.Logger
	cache       *LivenessCache
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger sets the audit trail logger.
func WithAuditLogger(a *audit.Logger) Option {
	return func(s *Service) { s.auditor = a }
}

// WithLivenessCache sets the Redis-backed liveness cache.
func WithLivenessCache(c *LivenessCache) Option {
	return func(s *Service) { s.cache = c }
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

// NewService constructs a consent lifecycle service.
func NewService(store Store, evidenceSource EvidenceSource, credentialSource CredentialSource, runner unitofwork.Runner, opts ...Option) *Service {
	s := &Service{
		store:       store,
		evidence:    evidenceSource,
		credentials: credentialSource,
		runner:      runner,
		tracer:      tracing.NewNoop(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new consent request from a requester.
type CreateInput struct {
	OwnerID       id.UserID
	Requester     string
	RequesterName string
	Fields        []string
	Purpose       string
}

// Create stores a new pending request. The requested field set is fixed
// here and never mutated afterwards.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	if in.OwnerID.IsNil() {
		return nil, dErrors.NewValidation("owner_id", "owner is required")
	}
	if strings.TrimSpace(in.Requester) == "" {
		return nil, dErrors.NewValidation("requester", "requester is required")
	}
	if len(in.Fields) == 0 {
		return nil, dErrors.NewValidation("fields", "at least one field is required")
	}
	for _, field := range in.Fields {
		if strings.TrimSpace(field) == "" {
			return nil, dErrors.NewValidation("fields", "fields must be non-blank")
		}
	}

	// Field names are case-insensitive identifiers; store them lowercased
	// so fulfillment lookups need no folding.
	request := &Request{
		ID:            id.NewConsentID(),
		OwnerID:       in.OwnerID,
		Requester:     in.Requester,
		RequesterName: in.RequesterName,
		Fields:        strutil.DedupeAndTrimLower(in.Fields),
		Purpose:       in.Purpose,
		Status:        StatusPending,
		CreatedAt:     requestcontext.Now(ctx),
		Version:       1,
	}

	err := s.runner.RunInTx(ctx, request.ID.String(), func(ctx context.Context) error {
		if err := s.store.Create(ctx, request); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "create consent request")
		}
		return s.appendAudit(ctx, request, audit.ActionConsentRequested, in.Requester, audit.ConsentRequestedDetail{
			Requester: in.Requester,
			Fields:    request.Fields,
			Purpose:   in.Purpose,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "consent requested",
		slog.String("consent_id", request.ID.String()),
		slog.String("requester", in.Requester),
	)
	return request, nil
}

// Approve transitions a pending request to approved, but only when the
// holder's current evidence covers every requested field. A refusal
// changes nothing and writes no audit entry.
func (s *Service) Approve(ctx context.Context, consentID id.ConsentID, actorID id.UserID, expiresAt *time.Time) (_ *Request, err error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanConsentApprove,
		tracing.String("consent_id", consentID.String()))
	defer func() { span.End(err) }()

	request, err := s.load(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if request.OwnerID != actorID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the consent owner may approve")
	}
	if request.Status != StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "consent request is not pending")
	}

	now := requestcontext.Now(ctx)
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, dErrors.NewValidation("expires_at", "expiry must be in the future")
	}

	resolution, err := s.resolve(ctx, request)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		tracing.Int("fields.requested", len(request.Fields)),
		tracing.Int("fields.satisfied", len(resolution.Satisfied)),
	)
	if !resolution.Complete() {
		if s.metrics != nil {
			s.metrics.ApprovalsBlocked.Inc()
		}
		return nil, &IncompleteEvidenceError{
			MissingDocuments: resolution.MissingDocuments,
			MissingData:      resolution.MissingData,
		}
	}

	request.Status = StatusApproved
	request.ApprovedAt = &now
	request.ExpiresAt = expiresAt

	if err = s.commit(ctx, request, audit.ActionConsentApproved, actorID.String(), audit.ConsentApprovedDetail{
		Requester: request.Requester,
		Fields:    request.Fields,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	s.cache.Set(ctx, request.ID, request.ExpiresAt, now)
	s.metrics.IncConsentDecision("approved")
	s.logger.InfoContext(ctx, "consent approved",
		slog.String("consent_id", request.ID.String()),
		slog.String("requester", request.Requester),
	)
	return request, nil
}

// Reject transitions a pending request to its terminal rejected state.
func (s *Service) Reject(ctx context.Context, consentID id.ConsentID, actorID id.UserID, reason string) (*Request, error) {
	request, err := s.load(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if request.OwnerID != actorID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the consent owner may reject")
	}
	if request.Status != StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "consent request is not pending")
	}

	request.Status = StatusRejected
	if err := s.commit(ctx, request, audit.ActionConsentRejected, actorID.String(), audit.ConsentRejectedDetail{
		Reason: reason,
	}); err != nil {
		return nil, err
	}

	s.metrics.IncConsentDecision("rejected")
	s.logger.InfoContext(ctx, "consent rejected",
		slog.String("consent_id", request.ID.String()))
	return request, nil
}

// Revoke withdraws an approved grant. Repeat calls fail with an invalid
// state error rather than being silently accepted.
func (s *Service) Revoke(ctx context.Context, consentID id.ConsentID, actorID id.UserID) (_ *Request, err error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanConsentRevoke,
		tracing.String("consent_id", consentID.String()))
	defer func() { span.End(err) }()

	request, err := s.load(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if request.OwnerID != actorID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the consent owner may revoke")
	}
	if request.Status != StatusApproved {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only approved consent can be revoked")
	}

	request.Status = StatusRevoked
	if err = s.commit(ctx, request, audit.ActionConsentRevoked, actorID.String(), audit.ConsentRevokedDetail{
		Requester: request.Requester,
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, request.ID)
	s.metrics.IncConsentDecision("revoked")
	s.logger.InfoContext(ctx, "consent revoked",
		slog.String("consent_id", request.ID.String()))
	return request, nil
}

// CheckLive reports whether the grant authorizes access right now.
// Expiry is evaluated lazily: an approved grant past its expiry reads as
// not live even while the stored status still says approved.
func (s *Service) CheckLive(ctx context.Context, consentID id.ConsentID) (bool, error) {
	if live, hit := s.cache.Get(ctx, consentID); hit {
		return live, nil
	}

	request, err := s.load(ctx, consentID)
	if err != nil {
		return false, err
	}
	now := requestcontext.Now(ctx)
	live := request.Live(now)
	if live {
		s.cache.Set(ctx, request.ID, request.ExpiresAt, now)
	}
	return live, nil
}

// RevokeOutcome reports one sub-revocation of a batch.
type RevokeOutcome struct {
	ConsentID id.ConsentID `json:"consent_id"`
	Requester string       `json:"requester"`
	Revoked   bool         `json:"revoked"`
	Error     string       `json:"error,omitempty"`
}

// RevokeAll revokes every currently approved grant for the owner,
// best-effort. Sub-revocation failures are captured per item and never
// abort the batch.
func (s *Service) RevokeAll(ctx context.Context, ownerID id.UserID, actorID id.UserID) ([]RevokeOutcome, error) {
	approved, err := s.store.ListByOwner(ctx, ownerID, StatusApproved)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list approved consent")
	}

	outcomes := make([]RevokeOutcome, len(approved))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(revokeAllConcurrency)
	for i, request := range approved {
		g.Go(func() error {
			outcome := RevokeOutcome{ConsentID: request.ID, Requester: request.Requester}
			if _, err := s.Revoke(ctx, request.ID, actorID); err != nil {
				outcome.Error = err.Error()
			} else {
				outcome.Revoked = true
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait() // sub-errors are reported in outcomes, never returned

	return outcomes, nil
}

// Get returns a consent request by id.
func (s *Service) Get(ctx context.Context, consentID id.ConsentID) (*Request, error) {
	return s.load(ctx, consentID)
}

// ListByOwner returns the owner's requests filtered by status ("" = all).
func (s *Service) ListByOwner(ctx context.Context, ownerID id.UserID, status Status) ([]*Request, error) {
	requests, err := s.store.ListByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list consent requests")
	}
	return requests, nil
}

func (s *Service) load(ctx context.Context, consentID id.ConsentID) (*Request, error) {
	request, err := s.store.FindByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "consent request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "find consent request")
	}
	return request, nil
}

// resolve gathers the holder's current evidence and active credential
// and runs fulfillment resolution over the requested field set.
func (s *Service) resolve(ctx context.Context, request *Request) (fulfillment.Resolution, error) {
	start := time.Now()

	documents, err := s.evidence.ListCurrent(ctx, request.OwnerID)
	if err != nil {
		return fulfillment.Resolution{}, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "list evidence")
	}
	credential, err := s.credentials.GetActive(ctx, request.OwnerID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return fulfillment.Resolution{}, err
		}
		credential = nil
	}

	resolution := fulfillment.Resolve(request.Fields, documents, credential)
	s.metrics.ObserveResolve(time.Since(start))
	return resolution, nil
}

// commit writes a transition and its audit entry as one unit of work,
// translating a stale version into a retryable conflict.
func (s *Service) commit(ctx context.Context, request *Request, action audit.Action, actorID string, detail audit.Detail) error {
	return s.runner.RunInTx(ctx, request.ID.String(), func(ctx context.Context) error {
		if err := s.store.Update(ctx, request); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.New(dErrors.CodeConflict, "consent request was modified concurrently")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "consent request not found")
			}
			return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "update consent request")
		}
		return s.appendAudit(ctx, request, action, actorID, detail)
	})
}

func (s *Service) appendAudit(ctx context.Context, request *Request, action audit.Action, actorID string, detail audit.Detail) error {
	if s.auditor == nil {
		return nil
	}
	_, err := s.auditor.Append(ctx, request.ID.String(), request.OwnerID, action, actorID, detail)
	return err
}
