package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"legalquery/internal/models"
)

// AddWarning records a blocked query. messageID may be nil when the user
// turn was not persisted.
func (s *Service) AddWarning(ctx context.Context, sessionID int64, messageID *int64, warningType, warningMessage, queryText string) (*models.SecurityWarning, error) {
	if sessionID <= 0 {
		return nil, errors.New("session_id is required")
	}
	if warningType == "" {
		return nil, errors.New("warning_type is required")
	}
	now := time.Now().UTC()
	warning := models.SecurityWarning{
		SessionID:      sessionID,
		MessageID:      messageID,
		WarningType:    warningType,
		WarningMessage: warningMessage,
		QueryText:      queryText,
		CreatedAt:      now,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO security_warnings (session_id, message_id, warning_type, warning_message, query_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING warning_id`,
		sessionID, nullableID(messageID), warningType, warningMessage, queryText, now,
	).Scan(&warning.ID)
	if err != nil {
		return nil, fmt.Errorf("insert warning: %w", err)
	}
	return &warning, nil
}

// ListWarnings returns a session's warnings, newest first.
func (s *Service) ListWarnings(ctx context.Context, sessionID int64) ([]models.SecurityWarning, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT warning_id, session_id, message_id, warning_type, warning_message, query_text, created_at
		 FROM security_warnings WHERE session_id = $1 ORDER BY warning_id DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	var warnings []models.SecurityWarning
	for rows.Next() {
		var w models.SecurityWarning
		var msgID sql.NullInt64
		if err := rows.Scan(&w.ID, &w.SessionID, &msgID, &w.WarningType, &w.WarningMessage, &w.QueryText, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		if msgID.Valid {
			w.MessageID = &msgID.Int64
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
