package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"kycvault/internal/audit"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/httputil"
	strutil "kycvault/pkg/platform/strings"
	"kycvault/pkg/requestcontext"
)

type auditEntryResponse struct {
	ID        string       `json:"id"`
	SubjectID string       `json:"subject_id"`
	Action    audit.Action `json:"action"`
	ActorID   string       `json:"actor_id"`
	Detail    audit.Detail `json:"detail,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func toAuditEntryResponse(e *audit.Entry) auditEntryResponse {
	return auditEntryResponse{
		ID:        e.ID.String(),
		SubjectID: e.SubjectID,
		Action:    e.Action,
		ActorID:   e.ActorID,
		Detail:    e.Detail,
		Timestamp: e.Timestamp,
	}
}

// auditQueryFromRequest builds a trail query from the request's query string.
// before is RFC 3339; action may repeat; limit defaults inside the store.
func auditQueryFromRequest(r *http.Request) (audit.Query, error) {
	var q audit.Query

	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Query{}, err
		}
		q.Before = before
	}
	for _, raw := range strutil.DedupeAndTrim(r.URL.Query()["action"]) {
		q.Actions = append(q.Actions, audit.Action(raw))
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return audit.Query{}, err
		}
		q.Limit = limit
	}
	return q, nil
}

// HandleAuditLogs handles GET /audit/logs. Entries are newest-first; page
// with before=<timestamp of the last entry returned>.
func (h *Handler) HandleAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	q, err := auditQueryFromRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid audit query", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid query parameter"))
		return
	}

	var entries []*audit.Entry
	if subjectID := r.URL.Query().Get("subject_id"); subjectID != "" {
		entries, err = h.audit.ListBySubject(ctx, subjectID, q)
	} else {
		entries, err = h.audit.ListByOwner(ctx, userID, q)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditEntryResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// HandleAuditSummary handles GET /audit/logs/summary: per-action counts over
// the owner's recent trail.
func (h *Handler) HandleAuditSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.audit.ListByOwner(ctx, userID, audit.Query{Limit: 500})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	counts := make(map[audit.Action]int)
	for _, e := range entries {
		counts[e.Action]++
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"total":     len(entries),
		"by_action": counts,
		"newest_at": newestTimestamp(entries),
		"oldest_at": oldestTimestamp(entries),
	})
}

func newestTimestamp(entries []*audit.Entry) *time.Time {
	if len(entries) == 0 {
		return nil
	}
	return &entries[0].Timestamp
}

func oldestTimestamp(entries []*audit.Entry) *time.Time {
	if len(entries) == 0 {
		return nil
	}
	return &entries[len(entries)-1].Timestamp
}
