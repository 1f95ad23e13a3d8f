package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation. Chunk and citation rows exist only
// for assistant messages.
type Message struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	TokensUsed *int64    `json:"tokens_used,omitempty"`
	HasChunks  bool      `json:"has_chunks"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RetrievalChunk is a grounding fragment attached to an assistant message,
// stored in the order the provider returned it.
type RetrievalChunk struct {
	ID             int64     `json:"id"`
	MessageID      int64     `json:"message_id"`
	SourceDocument string    `json:"source_document"`
	ChunkText      string    `json:"chunk_text"`
	ChunkOrder     int       `json:"chunk_order"`
	CreatedAt      time.Time `json:"created_at"`
}

// Citation points at the document backing part of an assistant answer.
type Citation struct {
	ID             int64     `json:"id"`
	MessageID      int64     `json:"message_id"`
	DocumentName   string    `json:"document_name"`
	ChunkReference string    `json:"chunk_reference"`
	CitationOrder  int       `json:"citation_order"`
	CreatedAt      time.Time `json:"created_at"`
}
