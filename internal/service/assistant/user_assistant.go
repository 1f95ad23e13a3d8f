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

// GetOrCreateUser resolves the (username, ip) pair to a user row, creating
// it on first visit and touching last_visit otherwise.
func (s *Service) GetOrCreateUser(ctx context.Context, username, ipAddress string) (*models.User, error) {
	username = strings.TrimSpace(username)
	ipAddress = strings.TrimSpace(ipAddress)
	if username == "" || ipAddress == "" {
		return nil, errors.New("username and ip address are required")
	}

	now := time.Now().UTC()
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, ip_address, first_visit, last_visit
		 FROM users WHERE username = $1 AND ip_address = $2`,
		username, ipAddress,
	).Scan(&user.ID, &user.Username, &user.IPAddress, &user.FirstVisit, &user.LastVisit)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx,
			`UPDATE users SET last_visit = $1 WHERE user_id = $2`, now, user.ID,
		); err != nil {
			return nil, fmt.Errorf("touch user: %w", err)
		}
		user.LastVisit = now
		return &user, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return nil, fmt.Errorf("query user: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, ip_address, first_visit, last_visit)
		 VALUES ($1, $2, $3, $4) RETURNING user_id`,
		username, ipAddress, now, now,
	).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.Username = username
	user.IPAddress = ipAddress
	user.FirstVisit = now
	user.LastVisit = now
	return &user, nil
}

// GetUser returns the user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, errors.New("invalid user id")
	}
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, ip_address, first_visit, last_visit
		 FROM users WHERE user_id = $1`, id,
	).Scan(&user.ID, &user.Username, &user.IPAddress, &user.FirstVisit, &user.LastVisit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ListUserStatistics reads the user_statistics view, most recent visitors first.
func (s *Service) ListUserStatistics(ctx context.Context) ([]models.UserStatistics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, ip_address, total_sessions, active_sessions,
			total_queries, total_warnings, first_visit, last_visit
		 FROM user_statistics ORDER BY last_visit DESC`)
	if err != nil {
		return nil, fmt.Errorf("list user statistics: %w", err)
	}
	defer rows.Close()

	var stats []models.UserStatistics
	for rows.Next() {
		var st models.UserStatistics
		if err := rows.Scan(&st.UserID, &st.Username, &st.IPAddress, &st.TotalSessions,
			&st.ActiveSessions, &st.TotalQueries, &st.TotalWarnings, &st.FirstVisit, &st.LastVisit); err != nil {
			return nil, fmt.Errorf("scan user statistics: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
