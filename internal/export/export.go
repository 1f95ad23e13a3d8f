// Package export renders a finished conversation as a self-contained JSON
// document for download.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"legalquery/internal/models"
)

// Turn is one role/content pair in chronological order.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Warning is the exported subset of a security warning row.
type Warning struct {
	WarningType    string    `json:"warning_type"`
	WarningMessage string    `json:"warning_message"`
	QueryText      string    `json:"query_text"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is the export document. Encoding and decoding it preserves
// the ordered turns and the warning list.
type Conversation struct {
	SessionName     string     `json:"session_name"`
	KnowledgeBase   string     `json:"knowledge_base"`
	SecurityEnabled bool       `json:"security_enabled"`
	ModelName       string     `json:"model_name"`
	SessionStart    time.Time  `json:"session_start"`
	SessionEnd      *time.Time `json:"session_end,omitempty"`
	ExportedAt      time.Time  `json:"exported_at"`
	Messages        []Turn     `json:"messages"`
	Warnings        []Warning  `json:"warnings"`
}

// Build assembles the export document from persisted rows. Messages keep
// their stored order; warnings are included in the order given.
func Build(session *models.Session, settings *models.SessionSettings, messages []models.Message, warnings []models.SecurityWarning) *Conversation {
	conv := &Conversation{
		SessionName:   session.Name,
		KnowledgeBase: session.KnowledgeBase,
		SessionStart:  session.SessionStart,
		SessionEnd:    session.SessionEnd,
		ExportedAt:    time.Now().UTC(),
		Messages:      make([]Turn, 0, len(messages)),
		Warnings:      make([]Warning, 0, len(warnings)),
	}
	if settings != nil {
		conv.SecurityEnabled = settings.SecurityEnabled
		conv.ModelName = settings.ModelName
	}
	for _, m := range messages {
		conv.Messages = append(conv.Messages, Turn{Role: string(m.Role), Content: m.Content})
	}
	for _, w := range warnings {
		conv.Warnings = append(conv.Warnings, Warning{
			WarningType:    w.WarningType,
			WarningMessage: w.WarningMessage,
			QueryText:      w.QueryText,
			CreatedAt:      w.CreatedAt,
		})
	}
	return conv
}

// Encode writes the document as indented JSON.
func (c *Conversation) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode conversation: %w", err)
	}
	return data, nil
}

// Decode parses a previously exported document.
func Decode(data []byte) (*Conversation, error) {
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &conv, nil
}
