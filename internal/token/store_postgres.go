package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
	txcontext "kycvault/pkg/platform/tx"
)

// PostgresStore persists credentials in PostgreSQL.
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

const credentialColumns = `id, owner_id, subject_name, subject_pan, subject_dob, subject_address,
	subject_phone, subject_email, status, proof, issued_at, revoked_at, revoked_reason`

func (s *PostgresStore) Save(ctx context.Context, credential *Credential) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO kyc_tokens (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(credential.ID),
		uuid.UUID(credential.OwnerID),
		credential.Subject.Name,
		credential.Subject.PAN,
		credential.Subject.DOB,
		credential.Subject.Address,
		credential.Subject.Phone,
		credential.Subject.Email,
		string(credential.Status),
		credential.Proof,
		credential.IssuedAt,
		credential.RevokedAt,
		credential.RevokedReason,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// Update applies the one-way revocation transition, compare-and-swap on the
// stored status so overlapping revocations admit exactly one winner.
func (s *PostgresStore) Update(ctx context.Context, credential *Credential) error {
	ex := s.execer(ctx)

	res, err := ex.ExecContext(ctx, `
		UPDATE kyc_tokens
		SET status = $2, revoked_at = $3, revoked_reason = $4
		WHERE id = $1 AND status = $5
	`,
		uuid.UUID(credential.ID),
		string(credential.Status),
		credential.RevokedAt,
		credential.RevokedReason,
		string(StatusActive),
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := ex.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM kyc_tokens WHERE id = $1)`,
			uuid.UUID(credential.ID),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("update credential: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrAlreadyRevoked
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tokenID id.TokenID) (*Credential, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+credentialColumns+`
		FROM kyc_tokens
		WHERE id = $1
	`, uuid.UUID(tokenID))

	credential, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by id: %w", err)
	}
	return credential, nil
}

func (s *PostgresStore) FindActive(ctx context.Context, ownerID id.UserID) (*Credential, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+credentialColumns+`
		FROM kyc_tokens
		WHERE owner_id = $1 AND status = $2
		ORDER BY issued_at DESC
		LIMIT 1
	`, uuid.UUID(ownerID), string(StatusActive))

	credential, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active credential: %w", err)
	}
	return credential, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*Credential, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+credentialColumns+`
		FROM kyc_tokens
		WHERE owner_id = $1
		ORDER BY issued_at DESC
	`, uuid.UUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []*Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, credential)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var (
		credential Credential
		tokenID    uuid.UUID
		ownerID    uuid.UUID
		status     string
		revokedAt  sql.NullTime
	)
	if err := row.Scan(
		&tokenID,
		&ownerID,
		&credential.Subject.Name,
		&credential.Subject.PAN,
		&credential.Subject.DOB,
		&credential.Subject.Address,
		&credential.Subject.Phone,
		&credential.Subject.Email,
		&status,
		&credential.Proof,
		&credential.IssuedAt,
		&revokedAt,
		&credential.RevokedReason,
	); err != nil {
		return nil, err
	}
	credential.ID = id.TokenID(tokenID)
	credential.OwnerID = id.UserID(ownerID)
	credential.Status = Status(status)
	if revokedAt.Valid {
		credential.RevokedAt = &revokedAt.Time
	}
	return &credential, nil
}
