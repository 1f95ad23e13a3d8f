package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"legalquery/internal/models"
)

const (
	statsCacheKey = "stats:global"
	statsCacheTTL = 30 * time.Second
)

// Statistics returns the global dashboard counters, served from cache when
// fresh enough.
func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	if cached, err := s.cache.Get(ctx, statsCacheKey); err == nil {
		var stats models.Statistics
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return &stats, nil
		}
	}

	var stats models.Statistics
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &stats.TotalUsers},
		{`SELECT COUNT(*) FROM sessions`, &stats.TotalSessions},
		{`SELECT COUNT(*) FROM messages`, &stats.TotalMessages},
		{`SELECT COUNT(*) FROM security_warnings`, &stats.TotalWarnings},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count statistics: %w", err)
		}
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE session_start >= $1`, startOfDay,
	).Scan(&stats.TodaySessions); err != nil {
		return nil, fmt.Errorf("count today's sessions: %w", err)
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, statsCacheKey, string(data), statsCacheTTL); err != nil && s.logger != nil {
			s.logger.Warn("cache statistics", zap.Error(err))
		}
	}
	return &stats, nil
}
