package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"legalquery/internal/models"
)

// CreateSession opens a new conversation bound to one knowledge store and
// records its generation settings in the same transaction.
func (s *Service) CreateSession(ctx context.Context, userID int64, name, knowledgeBase string, settings models.SessionSettings) (*models.Session, error) {
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "新對話 " + time.Now().Format("2006-01-02 15:04")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	session := models.Session{
		UserID:        userID,
		Name:          name,
		KnowledgeBase: knowledgeBase,
		IsActive:      true,
		SessionStart:  now,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO sessions (user_id, session_name, knowledge_base, is_active, session_start)
		 VALUES ($1, $2, $3, TRUE, $4) RETURNING session_id`,
		userID, name, knowledgeBase, now,
	).Scan(&session.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_settings (session_id, model_name, system_prompt, use_metadata_filter, metadata_filter, security_enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, settings.ModelName, settings.SystemPrompt,
		settings.UseMetadataFilter, settings.MetadataFilter, settings.SecurityEnabled, now,
	); err != nil {
		return nil, fmt.Errorf("create session settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create session: %w", err)
	}
	return &session, nil
}

// GetSession returns one session row.
func (s *Service) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	var session models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, session_name, knowledge_base, is_active, session_start, session_end
		 FROM sessions WHERE session_id = $1`, sessionID,
	).Scan(&session.ID, &session.UserID, &session.Name, &session.KnowledgeBase,
		&session.IsActive, &session.SessionStart, &session.SessionEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// GetActiveSession returns the session only when it still accepts messages.
func (s *Service) GetActiveSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive || session.SessionEnd != nil {
		return nil, ErrSessionEnded
	}
	return session, nil
}

// GetSessionSettings returns the generation settings recorded at creation.
func (s *Service) GetSessionSettings(ctx context.Context, sessionID int64) (*models.SessionSettings, error) {
	var settings models.SessionSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT setting_id, session_id, model_name, system_prompt, use_metadata_filter,
			COALESCE(metadata_filter, ''), security_enabled, created_at
		 FROM session_settings WHERE session_id = $1`, sessionID,
	).Scan(&settings.ID, &settings.SessionID, &settings.ModelName, &settings.SystemPrompt,
		&settings.UseMetadataFilter, &settings.MetadataFilter, &settings.SecurityEnabled, &settings.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session settings: %w", err)
	}
	return &settings, nil
}

// ListSessions returns a user's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID int64) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, session_name, knowledge_base, is_active, session_start, session_end
		 FROM sessions WHERE user_id = $1 ORDER BY session_start DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.KnowledgeBase,
			&sess.IsActive, &sess.SessionStart, &sess.SessionEnd); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ListSessionSummaries reads the session_summary view, newest first.
func (s *Service) ListSessionSummaries(ctx context.Context) ([]models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, session_name, username, COALESCE(knowledge_base, ''),
			total_messages, warning_count, is_active, session_start, session_end
		 FROM session_summary ORDER BY session_start DESC`)
	if err != nil {
		return nil, fmt.Errorf("list session summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.SessionSummary
	for rows.Next() {
		var sum models.SessionSummary
		if err := rows.Scan(&sum.SessionID, &sum.SessionName, &sum.Username, &sum.KnowledgeBase,
			&sum.TotalMessages, &sum.WarningCount, &sum.IsActive, &sum.SessionStart, &sum.SessionEnd); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// RenameSession sets a new session name.
func (s *Service) RenameSession(ctx context.Context, sessionID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("session name cannot be empty")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET session_name = $1 WHERE session_id = $2`, name, sessionID)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return requireAffected(res)
}

// EndSession closes the session. Ending an already-ended session is a no-op.
func (s *Service) EndSession(ctx context.Context, sessionID int64) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE, session_end = $1
		 WHERE session_id = $2 AND session_end IS NULL`,
		time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// DeleteSession removes a session; messages, chunks, citations, warnings and
// settings go with it via foreign key cascade.
func (s *Service) DeleteSession(ctx context.Context, sessionID int64) error {
	if sessionID <= 0 {
		return errors.New("invalid session id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
