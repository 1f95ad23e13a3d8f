package models

import "time"

// Session is one conversation thread. Once SessionEnd is set the session
// accepts no further messages.
type Session struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Name          string     `json:"name"`
	KnowledgeBase string     `json:"knowledge_base"`
	IsActive      bool       `json:"is_active"`
	SessionStart  time.Time  `json:"session_start"`
	SessionEnd    *time.Time `json:"session_end,omitempty"`
}

// SessionSettings captures the per-session generation configuration recorded
// when the session is created.
type SessionSettings struct {
	ID                int64     `json:"id"`
	SessionID         int64     `json:"session_id"`
	ModelName         string    `json:"model_name"`
	SystemPrompt      string    `json:"system_prompt"`
	UseMetadataFilter bool      `json:"use_metadata_filter"`
	MetadataFilter    string    `json:"metadata_filter"`
	SecurityEnabled   bool      `json:"security_enabled"`
	CreatedAt         time.Time `json:"created_at"`
}

// SessionSummary mirrors the session_summary view.
type SessionSummary struct {
	SessionID     int64      `json:"session_id"`
	SessionName   string     `json:"session_name"`
	Username      string     `json:"username"`
	KnowledgeBase string     `json:"knowledge_base"`
	TotalMessages int        `json:"total_messages"`
	WarningCount  int        `json:"warning_count"`
	IsActive      bool       `json:"is_active"`
	SessionStart  time.Time  `json:"session_start"`
	SessionEnd    *time.Time `json:"session_end,omitempty"`
}
