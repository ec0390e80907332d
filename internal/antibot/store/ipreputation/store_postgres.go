package ipreputation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wishguard/internal/antibot/models"
	"wishguard/pkg/platform/sentinel"
	txcontext "wishguard/pkg/platform/tx"
)

// PostgresStore persists reputation rows in ip_reputation_logs.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ipColumns = `ip_address, registration_attempts, successful_registrations, failed_otp_attempts,
	captcha_failures, is_vpn, risk_score, is_blocked, blocked_until, block_reason, first_seen, last_seen`

func counterColumn(counter models.IPCounter) (string, error) {
	switch counter {
	case models.CounterRegistrationAttempts,
		models.CounterSuccessfulRegistrations,
		models.CounterFailedOTPAttempts,
		models.CounterCaptchaFailures:
		return string(counter), nil
	default:
		return "", fmt.Errorf("unknown ip counter %q", counter)
	}
}

func (s *PostgresStore) Increment(ctx context.Context, ip string, counter models.IPCounter, now time.Time) (*models.IPReputation, error) {
	column, err := counterColumn(counter)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO ip_reputation_logs (ip_address, ` + column + `, first_seen, last_seen)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (ip_address) DO UPDATE SET
			` + column + ` = ip_reputation_logs.` + column + ` + 1,
			last_seen = $2
		RETURNING ` + ipColumns
	rep, err := scanReputation(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, ip, now))
	if err != nil {
		return nil, fmt.Errorf("increment ip %s: %w", column, err)
	}
	return rep, nil
}

func (s *PostgresStore) Get(ctx context.Context, ip string) (*models.IPReputation, error) {
	query := `SELECT ` + ipColumns + ` FROM ip_reputation_logs WHERE ip_address = $1`
	rep, err := scanReputation(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, ip))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get ip reputation: %w", err)
	}
	return rep, nil
}

func (s *PostgresStore) ClearExpiredBlock(ctx context.Context, ip string, now time.Time) (bool, error) {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE ip_reputation_logs
		SET is_blocked = FALSE, blocked_until = NULL, block_reason = ''
		WHERE ip_address = $1 AND is_blocked AND blocked_until IS NOT NULL AND blocked_until <= $2`,
		ip, now,
	)
	if err != nil {
		return false, fmt.Errorf("clear expired ip block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear expired ip block: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) SaveRisk(ctx context.Context, ip string, score float64, isVPN bool) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE ip_reputation_logs SET risk_score = $2, is_vpn = $3 WHERE ip_address = $1`,
		ip, score, isVPN,
	)
	if err != nil {
		return fmt.Errorf("save ip risk: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Block applies a block unless one is already in force, so concurrent
// recomputes flip the row exactly once.
func (s *PostgresStore) Block(ctx context.Context, ip string, until time.Time, reason string, now time.Time) (bool, error) {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE ip_reputation_logs
		SET is_blocked = TRUE, blocked_until = $2, block_reason = $3
		WHERE ip_address = $1
		  AND NOT (is_blocked AND (blocked_until IS NULL OR blocked_until > $4))`,
		ip, until, reason, now,
	)
	if err != nil {
		return false, fmt.Errorf("block ip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("block ip: %w", err)
	}
	return n > 0, nil
}

func scanReputation(row *sql.Row) (*models.IPReputation, error) {
	var (
		rep          models.IPReputation
		blockedUntil sql.NullTime
	)
	err := row.Scan(
		&rep.IP,
		&rep.RegistrationAttempts,
		&rep.SuccessfulRegistrations,
		&rep.FailedOTPAttempts,
		&rep.CaptchaFailures,
		&rep.IsVPN,
		&rep.RiskScore,
		&rep.IsBlocked,
		&blockedUntil,
		&rep.BlockReason,
		&rep.FirstSeen,
		&rep.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	if blockedUntil.Valid {
		t := blockedUntil.Time
		rep.BlockedUntil = &t
	}
	return &rep, nil
}
