package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wishguard/internal/email/models"
	"wishguard/pkg/platform/sentinel"
	txcontext "wishguard/pkg/platform/tx"
)

// PostgresStore persists tokens in email_verifications.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const verificationColumns = `id, email, token, verification_type, is_verified, attempts_count, max_attempts,
	ip_address, user_agent, created_at, expires_at, verified_at`

// Replace deletes unverified tokens for (email, type) and inserts v in one
// transaction.
func (s *PostgresStore) Replace(ctx context.Context, v *models.Verification) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		conn := txcontext.Conn(ctx, s.db)
		_, err := conn.ExecContext(ctx,
			`DELETE FROM email_verifications WHERE email = $1 AND verification_type = $2 AND NOT is_verified`,
			v.Email, string(v.Type),
		)
		if err != nil {
			return fmt.Errorf("delete superseded email tokens: %w", err)
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO email_verifications (
				id, email, token, verification_type, max_attempts,
				ip_address, user_agent, created_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			v.ID, v.Email, v.Token, string(v.Type), v.MaxAttempts,
			v.IP, v.UserAgent, v.CreatedAt, v.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("insert email token: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetPending(ctx context.Context, token string) (*models.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM email_verifications WHERE token = $1 AND NOT is_verified`
	v, err := scanVerification(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get email token: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, id string, now time.Time) (*models.Verification, error) {
	query := `
		UPDATE email_verifications
		SET attempts_count = attempts_count + 1
		WHERE id = $1
		  AND NOT is_verified
		  AND attempts_count < max_attempts
		  AND expires_at >= $2
		RETURNING ` + verificationColumns
	v, err := scanVerification(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrExhausted
		}
		return nil, fmt.Errorf("record email token attempt: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE email_verifications SET is_verified = TRUE, verified_at = $2 WHERE id = $1 AND NOT is_verified`,
		id, now,
	)
	if err != nil {
		return false, fmt.Errorf("mark email verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark email verified: %w", err)
	}
	return n > 0, nil
}

func scanVerification(row *sql.Row) (*models.Verification, error) {
	var (
		v          models.Verification
		kind       string
		verifiedAt sql.NullTime
	)
	err := row.Scan(
		&v.ID,
		&v.Email,
		&v.Token,
		&kind,
		&v.IsVerified,
		&v.AttemptsCount,
		&v.MaxAttempts,
		&v.IP,
		&v.UserAgent,
		&v.CreatedAt,
		&v.ExpiresAt,
		&verifiedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Type = models.VerificationType(kind)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		v.VerifiedAt = &t
	}
	return &v, nil
}
