package otp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wishguard/internal/otp/models"
	"wishguard/pkg/platform/sentinel"
	txcontext "wishguard/pkg/platform/tx"
)

// PostgresStore persists codes in otp_verifications. The partial unique index
// uq_otp_pending backs the one-pending-row-per-key rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const otpColumns = `id, phone_number, otp_type, code_hash, is_verified, attempts_count, max_attempts,
	ip_address, user_agent, created_at, expires_at, verified_at`

// Replace overwrites the pending row for (phone, type) in a single upsert, so
// concurrent sends converge on one row.
func (s *PostgresStore) Replace(ctx context.Context, o *models.OTPVerification) error {
	query := `
		INSERT INTO otp_verifications (
			id, phone_number, otp_type, code_hash, max_attempts,
			ip_address, user_agent, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (phone_number, otp_type) WHERE NOT is_verified DO UPDATE SET
			id = EXCLUDED.id,
			code_hash = EXCLUDED.code_hash,
			attempts_count = 0,
			max_attempts = EXCLUDED.max_attempts,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		o.ID, o.PhoneNumber, string(o.Type), o.CodeHash, o.MaxAttempts,
		o.IP, o.UserAgent, o.CreatedAt, o.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("replace otp: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestPending(ctx context.Context, phone string, kind models.Type) (*models.OTPVerification, error) {
	query := `SELECT ` + otpColumns + ` FROM otp_verifications
		WHERE phone_number = $1 AND otp_type = $2 AND NOT is_verified
		ORDER BY created_at DESC LIMIT 1`
	o, err := scanOTP(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, phone, string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get pending otp: %w", err)
	}
	return o, nil
}

// RecordAttempt spends one attempt with a compare-and-swap: parallel guesses
// can never push attempts_count past max_attempts.
func (s *PostgresStore) RecordAttempt(ctx context.Context, id string, now time.Time) (*models.OTPVerification, error) {
	query := `
		UPDATE otp_verifications
		SET attempts_count = attempts_count + 1
		WHERE id = $1
		  AND NOT is_verified
		  AND attempts_count < max_attempts
		  AND expires_at >= $2
		RETURNING ` + otpColumns
	o, err := scanOTP(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrExhausted
		}
		return nil, fmt.Errorf("record otp attempt: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE otp_verifications SET is_verified = TRUE, verified_at = $2 WHERE id = $1 AND NOT is_verified`,
		id, now,
	)
	if err != nil {
		return false, fmt.Errorf("mark otp verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark otp verified: %w", err)
	}
	return n > 0, nil
}

func scanOTP(row *sql.Row) (*models.OTPVerification, error) {
	var (
		o          models.OTPVerification
		kind       string
		verifiedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.PhoneNumber,
		&kind,
		&o.CodeHash,
		&o.IsVerified,
		&o.AttemptsCount,
		&o.MaxAttempts,
		&o.IP,
		&o.UserAgent,
		&o.CreatedAt,
		&o.ExpiresAt,
		&verifiedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Type = models.Type(kind)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		o.VerifiedAt = &t
	}
	return &o, nil
}
