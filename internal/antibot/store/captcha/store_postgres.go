package captcha

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

// PostgresStore persists challenges in captcha_challenges.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const challengeColumns = `id, session_id, ip_address, challenge_type, question, correct_answer,
	user_answer, is_solved, attempts_count, max_attempts, created_at, expires_at, solved_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.CaptchaChallenge) error {
	query := `
		INSERT INTO captcha_challenges (
			id, session_id, ip_address, challenge_type, question, correct_answer,
			max_attempts, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		c.ID, c.SessionID, c.IP, string(c.Type), c.Question, c.CorrectAnswer,
		c.MaxAttempts, c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert captcha challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id, sessionID string) (*models.CaptchaChallenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM captcha_challenges WHERE id = $1 AND session_id = $2`
	c, err := scanChallenge(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, id, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get captcha challenge: %w", err)
	}
	return c, nil
}

// RecordAttempt is a compare-and-swap on attempts_count: parallel guesses can
// never push the counter past max_attempts.
func (s *PostgresStore) RecordAttempt(ctx context.Context, id, answer string, now time.Time) (*models.CaptchaChallenge, error) {
	query := `
		UPDATE captcha_challenges
		SET attempts_count = attempts_count + 1, user_answer = $2
		WHERE id = $1
		  AND NOT is_solved
		  AND attempts_count < max_attempts
		  AND expires_at >= $3
		RETURNING ` + challengeColumns
	c, err := scanChallenge(txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, id, answer, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrExhausted
		}
		return nil, fmt.Errorf("record captcha attempt: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) MarkSolved(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE captcha_challenges SET is_solved = TRUE, solved_at = $2 WHERE id = $1 AND NOT is_solved`,
		id, now,
	)
	if err != nil {
		return false, fmt.Errorf("mark captcha solved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark captcha solved: %w", err)
	}
	return n > 0, nil
}

func scanChallenge(row *sql.Row) (*models.CaptchaChallenge, error) {
	var (
		c        models.CaptchaChallenge
		kind     string
		solvedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.SessionID,
		&c.IP,
		&kind,
		&c.Question,
		&c.CorrectAnswer,
		&c.UserAnswer,
		&c.IsSolved,
		&c.AttemptsCount,
		&c.MaxAttempts,
		&c.CreatedAt,
		&c.ExpiresAt,
		&solvedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Type = models.ChallengeType(kind)
	if solvedAt.Valid {
		t := solvedAt.Time
		c.SolvedAt = &t
	}
	return &c, nil
}
