package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"wishguard/pkg/platform/sentinel"
	txcontext "wishguard/pkg/platform/tx"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, phone_number, first_name, last_name, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		u.ID, u.PhoneNumber, u.FirstName, u.LastName, u.Email, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE phone_number = $1)`, phone,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user phone: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*User, error) {
	query := `SELECT id, phone_number, first_name, last_name, email, created_at
		FROM users WHERE phone_number = $1`
	var u User
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, phone).Scan(
		&u.ID, &u.PhoneNumber, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	return &u, nil
}
