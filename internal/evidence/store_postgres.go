package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
	txcontext "kycvault/pkg/platform/tx"
)

// PostgresStore persists evidence documents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed evidence store.
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

func (s *PostgresStore) Save(ctx context.Context, doc *Document) error {
	ex := s.execer(ctx)

	_, err := ex.ExecContext(ctx, `
		UPDATE evidence_documents
		SET current = FALSE
		WHERE owner_id = $1 AND category = $2 AND current
	`, uuid.UUID(doc.OwnerID), string(doc.Category))
	if err != nil {
		return fmt.Errorf("supersede document: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO evidence_documents
			(id, owner_id, category, storage_ref, status, issuer, verified_at, trust_score, uploaded_at, current)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	`,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.OwnerID),
		string(doc.Category),
		doc.StorageRef,
		string(doc.Status),
		doc.Issuer,
		doc.VerifiedAt,
		doc.TrustScore,
		doc.UploadedAt,
	)
	if err != nil {
		// The partial unique index on (owner_id, category) WHERE current
		// trips when a concurrent upload for the same category raced us.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	doc.Current = true
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, doc *Document) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE evidence_documents
		SET status = $2, issuer = $3, verified_at = $4, trust_score = $5
		WHERE id = $1
	`,
		uuid.UUID(doc.ID),
		string(doc.Status),
		doc.Issuer,
		doc.VerifiedAt,
		doc.TrustScore,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*Document, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, owner_id, category, storage_ref, status, issuer, verified_at, trust_score, uploaded_at, current
		FROM evidence_documents
		WHERE id = $1
	`, uuid.UUID(docID))

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListCurrent(ctx context.Context, ownerID id.UserID) ([]*Document, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, owner_id, category, storage_ref, status, issuer, verified_at, trust_score, uploaded_at, current
		FROM evidence_documents
		WHERE owner_id = $1 AND current
		ORDER BY category
	`, uuid.UUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list current documents: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc        Document
		docID      uuid.UUID
		ownerID    uuid.UUID
		category   string
		status     string
		verifiedAt sql.NullTime
	)
	if err := row.Scan(
		&docID,
		&ownerID,
		&category,
		&doc.StorageRef,
		&status,
		&doc.Issuer,
		&verifiedAt,
		&doc.TrustScore,
		&doc.UploadedAt,
		&doc.Current,
	); err != nil {
		return nil, err
	}
	doc.ID = id.DocumentID(docID)
	doc.OwnerID = id.UserID(ownerID)
	doc.Category = Category(category)
	doc.Status = Status(status)
	if verifiedAt.Valid {
		doc.VerifiedAt = &verifiedAt.Time
	}
	return &doc, nil
}
