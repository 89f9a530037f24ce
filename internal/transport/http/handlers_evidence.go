package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kycvault/internal/evidence"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/httputil"
	"kycvault/pkg/requestcontext"
)

type documentUploadRequest struct {
	Category   string `json:"category"`
	StorageRef string `json:"storage_ref"`
}

func (r *documentUploadRequest) Normalize() {
	r.Category = strings.TrimSpace(r.Category)
	r.StorageRef = strings.TrimSpace(r.StorageRef)
}

func (r *documentUploadRequest) Validate() error {
	if r.StorageRef == "" {
		return dErrors.NewValidation("storage_ref", "storage reference is required")
	}
	return nil
}

type documentVerificationRequest struct {
	Verified   bool   `json:"verified"`
	Issuer     string `json:"issuer,omitempty"`
	TrustScore int    `json:"trust_score,omitempty"`
}

type documentResponse struct {
	ID         string     `json:"id"`
	Category   string     `json:"category"`
	Status     string     `json:"status"`
	StorageRef string     `json:"storage_ref"`
	Issuer     string     `json:"issuer,omitempty"`
	TrustScore int        `json:"trust_score"`
	UploadedAt time.Time  `json:"uploaded_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

func toDocumentResponse(d *evidence.Document) documentResponse {
	return documentResponse{
		ID:         d.ID.String(),
		Category:   string(d.Category),
		Status:     string(d.Status),
		StorageRef: d.StorageRef,
		Issuer:     d.Issuer,
		TrustScore: d.TrustScore,
		UploadedAt: d.UploadedAt,
		VerifiedAt: d.VerifiedAt,
	}
}

// HandleDocumentUpload handles POST /documents/upload.
func (h *Handler) HandleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[documentUploadRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	doc, err := h.evidence.RecordUpload(ctx, evidence.UploadInput{
		OwnerID:    userID,
		Category:   req.Category,
		StorageRef: req.StorageRef,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestID,
		"document_id", doc.ID,
		"category", doc.Category,
	)
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

// HandleDocumentVerification handles POST /documents/{documentID}/verification.
// It records the outcome reported by the verification provider.
func (h *Handler) HandleDocumentVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document id"))
		return
	}

	req, ok := httputil.DecodeJSON[documentVerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	doc, err := h.evidence.RecordVerification(ctx, evidence.VerificationInput{
		DocumentID: docID,
		Verified:   req.Verified,
		Issuer:     req.Issuer,
		TrustScore: req.TrustScore,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// HandleDocumentList handles GET /documents. Only the current document per
// category is returned.
func (h *Handler) HandleDocumentList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	docs, err := h.evidence.ListCurrent(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// HandleKYCStatus handles GET /kyc/status.
func (h *Handler) HandleKYCStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status, err := h.evidence.Status(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
