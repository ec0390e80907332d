package device

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

// PostgresStore persists fingerprints in device_fingerprints. Counter updates
// are single upserts so concurrent sightings never lose increments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const deviceColumns = `fingerprint_hash, user_agent, accept_language, accept_encoding, platform,
	screen_resolution, timezone, registration_attempts, successful_registrations,
	risk_score, is_suspicious, first_seen, last_seen`

func (s *PostgresStore) Increment(ctx context.Context, hash string, attrs models.DeviceAttributes, attempts, successes int, now time.Time) (*models.DeviceFingerprint, error) {
	query := `
		INSERT INTO device_fingerprints (
			fingerprint_hash, user_agent, accept_language, accept_encoding, platform,
			screen_resolution, timezone, registration_attempts, successful_registrations,
			risk_score, is_suspicious, first_seen, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, FALSE, $10, $10)
		ON CONFLICT (fingerprint_hash) DO UPDATE SET
			screen_resolution = EXCLUDED.screen_resolution,
			timezone = EXCLUDED.timezone,
			registration_attempts = device_fingerprints.registration_attempts + $8,
			successful_registrations = device_fingerprints.successful_registrations + $9,
			last_seen = $10
		RETURNING ` + deviceColumns
	fp, err := scanDevice(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query,
		hash,
		attrs.UserAgent,
		attrs.AcceptLanguage,
		attrs.AcceptEncoding,
		attrs.Platform,
		attrs.ScreenResolution,
		attrs.Timezone,
		attempts,
		successes,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("increment device fingerprint: %w", err)
	}
	return fp, nil
}

func (s *PostgresStore) Get(ctx context.Context, hash string) (*models.DeviceFingerprint, error) {
	query := `SELECT ` + deviceColumns + ` FROM device_fingerprints WHERE fingerprint_hash = $1`
	fp, err := scanDevice(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get device fingerprint: %w", err)
	}
	return fp, nil
}

func (s *PostgresStore) SaveRisk(ctx context.Context, hash string, score float64, suspicious bool) error {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE device_fingerprints SET risk_score = $2, is_suspicious = $3 WHERE fingerprint_hash = $1`,
		hash, score, suspicious,
	)
	if err != nil {
		return fmt.Errorf("save device risk: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanDevice(row *sql.Row) (*models.DeviceFingerprint, error) {
	var fp models.DeviceFingerprint
	err := row.Scan(
		&fp.Hash,
		&fp.Attributes.UserAgent,
		&fp.Attributes.AcceptLanguage,
		&fp.Attributes.AcceptEncoding,
		&fp.Attributes.Platform,
		&fp.Attributes.ScreenResolution,
		&fp.Attributes.Timezone,
		&fp.RegistrationAttempts,
		&fp.SuccessfulRegistrations,
		&fp.RiskScore,
		&fp.IsSuspicious,
		&fp.FirstSeen,
		&fp.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return &fp, nil
}
