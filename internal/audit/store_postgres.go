package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "kycvault/pkg/domain"
	txcontext "kycvault/pkg/platform/tx"
)

// PostgresStore persists the trail in PostgreSQL. Appends participate in the
// caller's transaction when one is carried in context, so a state transition
// and its audit entry commit together.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	detail, err := EncodeDetail(entry.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}
	query := `
		INSERT INTO audit_entries (id, subject_id, owner_id, action, actor_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`
	err = s.execer(ctx).QueryRowContext(ctx, query,
		entry.ID,
		entry.SubjectID,
		uuid.UUID(entry.OwnerID),
		string(entry.Action),
		entry.ActorID,
		detail,
		entry.Timestamp,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID string, q Query) ([]*Entry, error) {
	return s.list(ctx, `subject_id = $1`, subjectID, q)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID, q Query) ([]*Entry, error) {
	return s.list(ctx, `owner_id = $1`, uuid.UUID(ownerID), q)
}

func (s *PostgresStore) list(ctx context.Context, where string, arg any, q Query) ([]*Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	query := `
		SELECT id, subject_id, owner_id, action, actor_id, detail, created_at, seq
		FROM audit_entries
		WHERE ` + where
	args := []any{arg}

	if !q.Before.IsZero() {
		args = append(args, q.Before)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if len(q.Actions) > 0 {
		actions := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			actions[i] = string(a)
		}
		args = append(args, actions)
		query += fmt.Sprintf(" AND action = ANY($%d)", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, seq DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		entry   Entry
		ownerID uuid.UUID
		action  string
		detail  []byte
	)
	if err := rows.Scan(
		&entry.ID,
		&entry.SubjectID,
		&ownerID,
		&action,
		&entry.ActorID,
		&detail,
		&entry.Timestamp,
		&entry.Seq,
	); err != nil {
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}
	entry.OwnerID = id.UserID(ownerID)
	entry.Action = Action(action)

	decoded, err := DecodeDetail(entry.Action, detail)
	if err != nil {
		return nil, fmt.Errorf("decode audit detail: %w", err)
	}
	entry.Detail = decoded
	return &entry, nil
}
