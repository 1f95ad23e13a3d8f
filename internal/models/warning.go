package models

import "time"

// SecurityWarning records a filter block. MessageID references the user
// message that triggered it.
type SecurityWarning struct {
	ID             int64     `json:"id"`
	SessionID      int64     `json:"session_id"`
	MessageID      *int64    `json:"message_id,omitempty"`
	WarningType    string    `json:"warning_type"`
	WarningMessage string    `json:"warning_message"`
	QueryText      string    `json:"query_text"`
	CreatedAt      time.Time `json:"created_at"`
}
