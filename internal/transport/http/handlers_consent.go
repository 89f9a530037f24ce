package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycvault/internal/consent"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/httputil"
	"kycvault/pkg/requestcontext"
)

type consentCreateRequest struct {
	Requester     string   `json:"requester"`
	RequesterName string   `json:"requester_name,omitempty"`
	Fields        []string `json:"fields"`
	Purpose       string   `json:"purpose,omitempty"`
}

type consentApproveRequest struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type consentRejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

type consentResponse struct {
	ID            string     `json:"id"`
	Requester     string     `json:"requester"`
	RequesterName string     `json:"requester_name,omitempty"`
	Fields        []string   `json:"fields"`
	Purpose       string     `json:"purpose,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func toConsentResponse(c *consent.Request) consentResponse {
	return consentResponse{
		ID:            c.ID.String(),
		Requester:     c.Requester,
		RequesterName: c.RequesterName,
		Fields:        c.Fields,
		Purpose:       c.Purpose,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		ApprovedAt:    c.ApprovedAt,
		ExpiresAt:     c.ExpiresAt,
	}
}

// HandleConsentCreate handles POST /consent.
func (h *Handler) HandleConsentCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeJSON[consentCreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.consents.Create(ctx, consent.CreateInput{
		OwnerID:       userID,
		Requester:     req.Requester,
		RequesterName: req.RequesterName,
		Fields:        req.Fields,
		Purpose:       req.Purpose,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consent requested",
		"request_id", requestID,
		"consent_id", created.ID,
		"requester", created.Requester,
	)
	httputil.WriteJSON(w, http.StatusCreated, toConsentResponse(created))
}

// HandleConsentPending handles GET /consent/pending.
func (h *Handler) HandleConsentPending(w http.ResponseWriter, r *http.Request) {
	h.listConsents(w, r, consent.StatusPending)
}

// HandleConsentApproved handles GET /consent/approved.
func (h *Handler) HandleConsentApproved(w http.ResponseWriter, r *http.Request) {
	h.listConsents(w, r, consent.StatusApproved)
}

func (h *Handler) listConsents(w http.ResponseWriter, r *http.Request, status consent.Status) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requests, err := h.consents.ListByOwner(ctx, userID, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]consentResponse, 0, len(requests))
	for _, c := range requests {
		out = append(out, toConsentResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"consents": out})
}

// HandleConsentGet handles GET /consent/{consentID}.
func (h *Handler) HandleConsentGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	req, err := h.consents.Get(ctx, consentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if req.OwnerID != userID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "consent request not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(req))
}

// HandleConsentApprove handles POST /consent/{consentID}/approve.
func (h *Handler) HandleConsentApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	req, ok := httputil.DecodeJSON[consentApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	approved, err := h.consents.Approve(ctx, consentID, userID, req.ExpiresAt)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consent approved",
		"request_id", requestID,
		"consent_id", approved.ID,
		"requester", approved.Requester,
	)
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(approved))
}

// HandleConsentReject handles POST /consent/{consentID}/reject.
func (h *Handler) HandleConsentReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	req, ok := httputil.DecodeJSON[consentRejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rejected, err := h.consents.Reject(ctx, consentID, userID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(rejected))
}

// HandleConsentRevoke handles POST /consent/{consentID}/revoke.
func (h *Handler) HandleConsentRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	revoked, err := h.consents.Revoke(ctx, consentID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consent revoked",
		"request_id", requestID,
		"consent_id", revoked.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(revoked))
}

// HandleConsentRevokeAll handles POST /consent/revoke-all. The response lists
// the outcome for every approved grant; partial failure is not an error.
func (h *Handler) HandleConsentRevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcomes, err := h.consents.RevokeAll(ctx, userID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consent revoke-all completed",
		"request_id", requestID,
		"count", len(outcomes),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": outcomes})
}

// HandleConsentLive handles GET /consent/{consentID}/live.
func (h *Handler) HandleConsentLive(w http.ResponseWriter, r *http.Request) {
	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	live, err := h.consents.CheckLive(r.Context(), consentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"live": live})
}
