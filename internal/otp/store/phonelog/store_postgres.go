package phonelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"wishguard/internal/otp/models"
	txcontext "wishguard/pkg/platform/tx"
)

// PostgresStore appends to phone_verification_logs.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.PhoneVerificationLog) error {
	query := `
		INSERT INTO phone_verification_logs (
			phone_number, action, otp_type, ip_address, user_agent, success, error_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		entry.PhoneNumber, string(entry.Action), string(entry.Type), entry.IP, entry.UserAgent,
		entry.Success, entry.ErrorCode, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append phone log: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountSince(ctx context.Context, phone string, actions []models.LogAction, since time.Time) (int, error) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	query := `
		SELECT COUNT(*) FROM phone_verification_logs
		WHERE phone_number = $1 AND action = ANY($2) AND created_at >= $3`
	var n int
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, phone, pq.Array(names), since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count phone logs: %w", err)
	}
	return n, nil
}
