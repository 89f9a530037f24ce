package httptransport

import (
	"net/http"

	"kycvault/internal/registration"
	"kycvault/pkg/platform/httputil"
	"kycvault/pkg/requestcontext"
)

type registrationAdvanceRequest struct {
	Step string `json:"step"`
}

type registrationStateResponse struct {
	Step string `json:"step"`
	Done bool   `json:"done"`
}

// HandleRegistrationAdvance handles POST /registration/advance. The client
// reports the step it just completed and receives the next one; the claimed
// step is checked against the step persisted on the user record, so
// out-of-order submissions are rejected.
func (h *Handler) HandleRegistrationAdvance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeJSON[registrationAdvanceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	step, err := registration.ParseStep(req.Step)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	next, err := h.auth.AdvanceRegistration(ctx, userID, step)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, registrationStateResponse{
		Step: string(next.Step),
		Done: next.Done(),
	})
}
