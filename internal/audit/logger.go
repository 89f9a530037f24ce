package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kycvault/internal/platform/kafka"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/requestcontext"
)

// MirrorTopic receives a copy of every committed audit entry when Kafka is
// configured.
const MirrorTopic = "kyc.audit"

// Publisher mirrors committed entries to an external sink. Delivery is
// fire-and-forget; the store append is the unit of work.
type Publisher interface {
	ProduceAsync(msg *kafka.Message) error
}

// Logger is the append-only trail facade the lifecycle managers call as the
// last step of every successful transition. Append failures propagate so the
// caller can roll the transition back.
type Logger struct {
	store  Store
	logger *slog.Logger
	mirror Publisher
}

type Option func(l *Logger)

func WithSlog(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

// WithMirror attaches a Kafka mirror for committed entries.
func WithMirror(p Publisher) Option {
	return func(l *Logger) { l.mirror = p }
}

func NewLogger(store Store, opts ...Option) *Logger {
	l := &Logger{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records one lifecycle transition. The entry timestamp comes from the
// request-scoped clock so transitions within one call share an instant.
func (l *Logger) Append(ctx context.Context, subjectID string, ownerID id.UserID, action Action, actorID string, detail Detail) (*Entry, error) {
	if !action.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown audit action: "+string(action))
	}

	entry := &Entry{
		ID:        uuid.New(),
		SubjectID: subjectID,
		OwnerID:   ownerID,
		Action:    action,
		ActorID:   actorID,
		Detail:    detail,
		Timestamp: requestcontext.Now(ctx),
	}

	if err := l.store.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "audit append failed")
	}

	l.mirrorEntry(entry)
	return entry, nil
}

// ListBySubject returns the trail for one token or consent, newest first.
func (l *Logger) ListBySubject(ctx context.Context, subjectID string, q Query) ([]*Entry, error) {
	return l.store.ListBySubject(ctx, subjectID, q)
}

// ListByOwner returns the trail across all of a user's subjects, newest first.
func (l *Logger) ListByOwner(ctx context.Context, ownerID id.UserID, q Query) ([]*Entry, error) {
	return l.store.ListByOwner(ctx, ownerID, q)
}

// mirrorEntry ships a copy to Kafka. Failures are logged, never surfaced:
// the store holds the authoritative trail.
func (l *Logger) mirrorEntry(entry *Entry) {
	if l.mirror == nil {
		return
	}

	detail, err := EncodeDetail(entry.Detail)
	if err != nil {
		l.logger.Error("audit mirror encode failed", "entry_id", entry.ID, "error", err)
		return
	}

	payload, err := json.Marshal(struct {
		ID        string          `json:"id"`
		SubjectID string          `json:"subject_id"`
		OwnerID   string          `json:"owner_id"`
		Action    string          `json:"action"`
		ActorID   string          `json:"actor_id"`
		Detail    json.RawMessage `json:"detail"`
		Timestamp string          `json:"timestamp"`
	}{
		ID:        entry.ID.String(),
		SubjectID: entry.SubjectID,
		OwnerID:   entry.OwnerID.String(),
		Action:    string(entry.Action),
		ActorID:   entry.ActorID,
		Detail:    detail,
		Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		l.logger.Error("audit mirror encode failed", "entry_id", entry.ID, "error", err)
		return
	}

	if err := l.mirror.ProduceAsync(&kafka.Message{
		Topic: MirrorTopic,
		Key:   []byte(entry.SubjectID),
		Value: payload,
	}); err != nil {
		l.logger.Error("audit mirror publish failed", "entry_id", entry.ID, "error", err)
	}
}
