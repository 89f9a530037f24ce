package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycvault/internal/token"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/httputil"
	"kycvault/pkg/requestcontext"
)

type tokenIssueRequest struct {
	Name    string `json:"name"`
	PAN     string `json:"pan"`
	DOB     string `json:"dob"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type tokenRevokeRequest struct {
	Reason string `json:"reason,omitempty"`
}

type credentialResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Name          string     `json:"name"`
	PANMasked     string     `json:"pan_masked"`
	DOB           string     `json:"dob"`
	Address       string     `json:"address,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Email         string     `json:"email,omitempty"`
	Proof         string     `json:"proof,omitempty"`
	IssuedAt      time.Time  `json:"issued_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

// toCredentialResponse renders a credential for the holder. The raw PAN never
// leaves the service boundary; includeProof controls whether the signed proof
// is attached (issue and single-get only, not listings).
func toCredentialResponse(c *token.Credential, includeProof bool) credentialResponse {
	resp := credentialResponse{
		ID:            c.ID.String(),
		Status:        string(c.Status),
		Name:          c.Subject.Name,
		PANMasked:     token.MaskPAN(c.Subject.PAN),
		DOB:           c.Subject.DOB,
		Address:       c.Subject.Address,
		Phone:         c.Subject.Phone,
		Email:         c.Subject.Email,
		IssuedAt:      c.IssuedAt,
		RevokedAt:     c.RevokedAt,
		RevokedReason: c.RevokedReason,
	}
	if includeProof {
		resp.Proof = c.Proof
	}
	return resp
}

// HandleTokenIssue handles POST /kyc/issue.
func (h *Handler) HandleTokenIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeJSON[tokenIssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cred, err := h.tokens.Issue(ctx, userID, token.Subject{
		Name:    req.Name,
		PAN:     req.PAN,
		DOB:     req.DOB,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "kyc token issued",
		"request_id", requestID,
		"token_id", cred.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(cred, true))
}

// HandleTokenList handles GET /kyc/tokens.
func (h *Handler) HandleTokenList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	creds, err := h.tokens.List(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, toCredentialResponse(c, false))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

// HandleTokenGet handles GET /kyc/token/{tokenID}.
func (h *Handler) HandleTokenGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tokenID, err := id.ParseTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid token id"))
		return
	}

	cred, err := h.tokens.Get(ctx, tokenID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if cred.OwnerID != userID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "token not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred, true))
}

// HandleTokenRevoke handles POST /kyc/token/{tokenID}/revoke.
func (h *Handler) HandleTokenRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tokenID, err := id.ParseTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid token id"))
		return
	}

	req, ok := httputil.DecodeJSON[tokenRevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cred, err := h.tokens.Get(ctx, tokenID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if cred.OwnerID != userID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "token not found"))
		return
	}

	revoked, err := h.tokens.Revoke(ctx, tokenID, userID.String(), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "kyc token revoked",
		"request_id", requestID,
		"token_id", revoked.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(revoked, false))
}
