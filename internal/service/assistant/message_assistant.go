package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"legalquery/internal/models"
	"legalquery/internal/service/ai"
)

// AddMessage stores one conversation turn without grounding data.
func (s *Service) AddMessage(ctx context.Context, sessionID int64, role models.Role, content string) (*models.Message, error) {
	if sessionID <= 0 {
		return nil, errors.New("session_id is required")
	}
	now := time.Now().UTC()
	msg := models.Message{SessionID: sessionID, Role: role, Content: content, CreatedAt: now}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (session_id, role, content, has_chunks, chunk_count, created_at)
		 VALUES ($1, $2, $3, FALSE, 0, $4) RETURNING message_id`,
		sessionID, string(role), content, now,
	).Scan(&msg.ID)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// SaveAssistantAnswer stores the assistant turn together with its retrieval
// chunks and citations in provider order, all in one transaction.
func (s *Service) SaveAssistantAnswer(ctx context.Context, sessionID int64, answer *ai.Answer) (*models.Message, error) {
	if sessionID <= 0 {
		return nil, errors.New("session_id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	msg := models.Message{
		SessionID:  sessionID,
		Role:       models.RoleAssistant,
		Content:    answer.Text,
		HasChunks:  len(answer.Chunks) > 0,
		ChunkCount: len(answer.Chunks),
		CreatedAt:  now,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (session_id, role, content, has_chunks, chunk_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING message_id`,
		sessionID, string(models.RoleAssistant), answer.Text, msg.HasChunks, msg.ChunkCount, now,
	).Scan(&msg.ID)
	if err != nil {
		return nil, fmt.Errorf("insert assistant message: %w", err)
	}

	for i, chunk := range answer.Chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO retrieval_chunks (message_id, source_document, chunk_text, chunk_order, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			msg.ID, chunk.SourceDocument, chunk.Text, i, now,
		); err != nil {
			return nil, fmt.Errorf("insert retrieval chunk: %w", err)
		}
	}
	for i, cit := range answer.Citations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO citations (message_id, document_name, chunk_reference, citation_order, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			msg.ID, cit.Document, cit.Reference, i, now,
		); err != nil {
			return nil, fmt.Errorf("insert citation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assistant answer: %w", err)
	}
	return &msg, nil
}

// ListMessages returns a session's messages in chronological order.
func (s *Service) ListMessages(ctx context.Context, sessionID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, role, content, tokens_used, has_chunks, chunk_count, created_at
		 FROM messages WHERE session_id = $1 ORDER BY message_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var tokens sql.NullInt64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &tokens,
			&m.HasChunks, &m.ChunkCount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if tokens.Valid {
			m.TokensUsed = &tokens.Int64
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListChunks returns the retrieval chunks of one message in stored order.
func (s *Service) ListChunks(ctx context.Context, messageID int64) ([]models.RetrievalChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, message_id, source_document, chunk_text, chunk_order, created_at
		 FROM retrieval_chunks WHERE message_id = $1 ORDER BY chunk_order ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.RetrievalChunk
	for rows.Next() {
		var c models.RetrievalChunk
		if err := rows.Scan(&c.ID, &c.MessageID, &c.SourceDocument, &c.ChunkText, &c.ChunkOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListCitations returns the citations of one message in stored order.
func (s *Service) ListCitations(ctx context.Context, messageID int64) ([]models.Citation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT citation_id, message_id, document_name, COALESCE(chunk_reference, ''), citation_order, created_at
		 FROM citations WHERE message_id = $1 ORDER BY citation_order ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	defer rows.Close()

	var citations []models.Citation
	for rows.Next() {
		var c models.Citation
		if err := rows.Scan(&c.ID, &c.MessageID, &c.DocumentName, &c.ChunkReference, &c.CitationOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		citations = append(citations, c)
	}
	return citations, rows.Err()
}
