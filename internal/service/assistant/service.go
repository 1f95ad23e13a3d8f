package assistant

import (
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"legalquery/internal/redis"
)

// ErrSessionEnded is returned when a write targets a session whose
// session_end is already set.
var ErrSessionEnded = errors.New("session has ended")

// Service is the persistence layer: users, sessions, messages, retrieval
// chunks, citations and security warnings. Not-found lookups surface
// sql.ErrNoRows so handlers can map them to 404s.
type Service struct {
	db     *sql.DB
	cache  *redis.Client
	logger *zap.Logger
}

// NewService builds the persistence service. cache may be nil, which
// disables statistics caching.
func NewService(db *sql.DB, cache *redis.Client, logger *zap.Logger) *Service {
	return &Service{db: db, cache: cache, logger: logger}
}
