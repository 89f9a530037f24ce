package consent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
	txcontext "kycvault/pkg/platform/tx"
)

// PostgresStore persists consent requests in PostgreSQL. The requested
// field set is stored as a JSONB array; transitions are guarded by the
// version column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const consentColumns = `id, owner_id, requester, requester_name, fields, purpose, status,
	created_at, approved_at, expires_at, version`

func (s *PostgresStore) Create(ctx context.Context, request *Request) error {
	fields, err := json.Marshal(request.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO consent_requests (`+consentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(request.ID),
		uuid.UUID(request.OwnerID),
		request.Requester,
		request.RequesterName,
		fields,
		request.Purpose,
		string(request.Status),
		request.CreatedAt,
		request.ApprovedAt,
		request.ExpiresAt,
		request.Version,
	)
	if err != nil {
		return fmt.Errorf("insert consent request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, consentID id.ConsentID) (*Request, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+consentColumns+`
		FROM consent_requests
		WHERE id = $1
	`, uuid.UUID(consentID))

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consent request: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) Update(ctx context.Context, request *Request) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE consent_requests
		SET status = $3, approved_at = $4, expires_at = $5, version = version + 1
		WHERE id = $1 AND version = $2
	`,
		uuid.UUID(request.ID),
		request.Version,
		string(request.Status),
		request.ApprovedAt,
		request.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("update consent request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent request: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := s.execer(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM consent_requests WHERE id = $1)`,
			uuid.UUID(request.ID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check consent request: %w", err)
		}
		if exists {
			return sentinel.ErrConflict
		}
		return sentinel.ErrNotFound
	}
	request.Version++
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID, status Status) ([]*Request, error) {
	query := `
		SELECT ` + consentColumns + `
		FROM consent_requests
		WHERE owner_id = $1`
	args := []any{uuid.UUID(ownerID)}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list consent requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent request: %w", err)
		}
		out = append(out, request)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		request    Request
		consentID  uuid.UUID
		ownerID    uuid.UUID
		fields     []byte
		status     string
		approvedAt sql.NullTime
		expiresAt  sql.NullTime
	)
	if err := row.Scan(
		&consentID,
		&ownerID,
		&request.Requester,
		&request.RequesterName,
		&fields,
		&request.Purpose,
		&status,
		&request.CreatedAt,
		&approvedAt,
		&expiresAt,
		&request.Version,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &request.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	request.ID = id.ConsentID(consentID)
	request.OwnerID = id.UserID(ownerID)
	request.Status = Status(status)
	if approvedAt.Valid {
		request.ApprovedAt = &approvedAt.Time
	}
	if expiresAt.Valid {
		request.ExpiresAt = &expiresAt.Time
	}
	return &request, nil
}
