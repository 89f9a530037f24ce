package httptransport

import (
	"errors"
	"net/http"

	"kycvault/internal/consent"
	"kycvault/pkg/platform/httputil"
)

// writeServiceError extends the shared translation with the approval
// precondition: incomplete evidence is a designed refusal carrying the
// exact missing sets, not a generic failure.
func writeServiceError(w http.ResponseWriter, err error) {
	var incomplete *consent.IncompleteEvidenceError
	if errors.As(err, &incomplete) {
		httputil.WriteJSON(w, http.StatusPreconditionFailed, map[string]any{
			"error":             "incomplete_evidence",
			"missing_documents": incomplete.MissingDocuments,
			"missing_data":      incomplete.MissingData,
		})
		return
	}
	httputil.WriteError(w, err)
}
