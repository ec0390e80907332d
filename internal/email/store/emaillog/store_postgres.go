package emaillog

import (
	"context"
	"database/sql"
	"fmt"

	"wishguard/internal/email/models"
	txcontext "wishguard/pkg/platform/tx"
)

// PostgresStore appends to email_verification_logs.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.LogEntry) error {
	query := `
		INSERT INTO email_verification_logs (
			email, action, verification_type, ip_address, user_agent, success, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		entry.Email, string(entry.Action), string(entry.Type), entry.IP, entry.UserAgent,
		entry.Success, entry.ErrorMessage, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return nil
}
