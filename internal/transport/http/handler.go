package httptransport

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"kycvault/internal/audit"
	"kycvault/internal/auth"
	"kycvault/internal/consent"
	"kycvault/internal/evidence"
	"kycvault/internal/token"
)

// Handler exposes the holder-facing and requester-facing API surface.
type Handler struct {
	auth     *auth.Service
	evidence *evidence.Service
	tokens   *token.Service
	consents *consent.Service
	audit    *audit.Logger
	logger   *slog.Logger
}

func NewHandler(
	authSvc *auth.Service,
	evidenceSvc *evidence.Service,
	tokenSvc *token.Service,
	consentSvc *consent.Service,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		auth:     authSvc,
		evidence: evidenceSvc,
		tokens:   tokenSvc,
		consents: consentSvc,
		audit:    auditLog,
		logger:   logger,
	}
}

// RegisterPublic mounts the routes that do not require a session.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterProtected mounts the session-scoped routes.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/auth/me", h.HandleMe)

	r.Post("/registration/advance", h.HandleRegistrationAdvance)

	r.Post("/documents/upload", h.HandleDocumentUpload)
	r.Post("/documents/{documentID}/verification", h.HandleDocumentVerification)
	r.Get("/documents", h.HandleDocumentList)

	r.Post("/kyc/issue", h.HandleTokenIssue)
	r.Get("/kyc/tokens", h.HandleTokenList)
	r.Get("/kyc/token/{tokenID}", h.HandleTokenGet)
	r.Post("/kyc/token/{tokenID}/revoke", h.HandleTokenRevoke)
	r.Get("/kyc/status", h.HandleKYCStatus)

	r.Post("/consent", h.HandleConsentCreate)
	r.Get("/consent/pending", h.HandleConsentPending)
	r.Get("/consent/approved", h.HandleConsentApproved)
	r.Get("/consent/{consentID}", h.HandleConsentGet)
	r.Post("/consent/{consentID}/approve", h.HandleConsentApprove)
	r.Post("/consent/{consentID}/reject", h.HandleConsentReject)
	r.Post("/consent/{consentID}/revoke", h.HandleConsentRevoke)
	r.Post("/consent/revoke-all", h.HandleConsentRevokeAll)
	r.Get("/consent/{consentID}/live", h.HandleConsentLive)

	r.Get("/audit/logs", h.HandleAuditLogs)
	r.Get("/audit/logs/summary", h.HandleAuditSummary)
}
