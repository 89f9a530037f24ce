package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "kycvault/pkg/domain"
	"kycvault/pkg/platform/sentinel"
	txcontext "kycvault/pkg/platform/tx"
)

// PostgresStore persists users in PostgreSQL. The unique index on
// lower(email) backs the duplicate-registration check.
type PostgresStore struct {
	db *sql.DB
}

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

func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, registration_step, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.UUID(u.ID),
		u.Name,
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.Phone,
		u.PasswordHash,
		u.RegistrationStep,
		u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*User, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(userID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, `WHERE email = lower($1)`, strings.TrimSpace(email))
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*User, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, phone, password_hash, registration_step, created_at
		FROM users `+where, arg)

	var (
		u      User
		userID uuid.UUID
	)
	if err := row.Scan(&userID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.RegistrationStep, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(userID)
	return &u, nil
}

func (s *PostgresStore) Update(ctx context.Context, u *User) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = lower($3), phone = $4, password_hash = $5, registration_step = $6
		WHERE id = $1
	`,
		uuid.UUID(u.ID),
		u.Name,
		u.Email,
		u.Phone,
		u.PasswordHash,
		u.RegistrationStep,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
