package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	audit "wishguard/pkg/platform/audit"
	txcontext "wishguard/pkg/platform/tx"
)

// Store appends security events to the security_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.SecurityEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal security event details: %w", err)
	}
	query := `
		INSERT INTO security_events (
			id, event_type, severity, ip_address, user_agent, session_id,
			request_id, subject, description, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		string(event.Severity),
		event.IP,
		event.UserAgent,
		event.SessionID,
		event.RequestID,
		event.Subject,
		event.Description,
		details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first, optionally filtered by type.
func (s *Store) ListRecent(ctx context.Context, limit int, types ...audit.EventType) ([]audit.SecurityEvent, error) {
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}
	query := `
		SELECT id, event_type, severity, ip_address, user_agent, session_id,
		       request_id, subject, description, details, created_at
		FROM security_events
		WHERE cardinality($1::text[]) = 0 OR event_type = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(typeNames), limit)
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	var events []audit.SecurityEvent
	for rows.Next() {
		var (
			ev       audit.SecurityEvent
			evType   string
			severity string
			details  []byte
		)
		if err := rows.Scan(&ev.ID, &evType, &severity, &ev.IP, &ev.UserAgent, &ev.SessionID,
			&ev.RequestID, &ev.Subject, &ev.Description, &details, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		ev.Type = audit.EventType(evType)
		ev.Severity = audit.Severity(severity)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &ev.Details); err != nil {
				return nil, fmt.Errorf("unmarshal security event details: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security events: %w", err)
	}
	return events, nil
}
