package behavior

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wishguard/internal/antibot/models"
	txcontext "wishguard/pkg/platform/tx"
)

// PostgresStore persists analyses in behavior_analyses.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, a *models.BehaviorAnalysis) error {
	var fingerprint sql.NullString
	if a.FingerprintHash != "" {
		fingerprint = sql.NullString{String: a.FingerprintHash, Valid: true}
	}
	query := `
		INSERT INTO behavior_analyses (
			id, session_id, ip_address, fingerprint_hash, form_fill_time, typing_speed,
			mouse_movements, clicks_count, key_presses, copy_paste_detected, time_on_page,
			bot_probability, is_human_like, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		a.ID,
		a.SessionID,
		a.IP,
		fingerprint,
		a.Telemetry.FormFillTime,
		a.Telemetry.TypingSpeed,
		a.Telemetry.MouseMovements,
		a.Telemetry.ClicksCount,
		a.Telemetry.KeyPresses,
		a.Telemetry.CopyPasteDetected,
		a.Telemetry.TimeOnPage,
		a.BotProbability,
		a.IsHumanLike,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert behavior analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context, since time.Time) (models.BehaviorStats, error) {
	var stats models.BehaviorStats
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE NOT is_human_like),
		       COALESCE(AVG(bot_probability), 0)
		FROM behavior_analyses
		WHERE created_at >= $1`, since,
	).Scan(&stats.Total, &stats.BotLike, &stats.AvgBotProbability)
	if err != nil {
		return models.BehaviorStats{}, fmt.Errorf("behavior stats: %w", err)
	}
	return stats, nil
}
