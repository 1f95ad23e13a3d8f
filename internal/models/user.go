package models

import "time"

// User identifies a visitor by best-effort machine identity (username plus
// source address), not by authenticated credentials.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	IPAddress  string    `json:"ip_address"`
	FirstVisit time.Time `json:"first_visit"`
	LastVisit  time.Time `json:"last_visit"`
}

// UserStatistics mirrors the user_statistics view.
type UserStatistics struct {
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	IPAddress      string    `json:"ip_address"`
	TotalSessions  int       `json:"total_sessions"`
	ActiveSessions int       `json:"active_sessions"`
	TotalQueries   int       `json:"total_queries"`
	TotalWarnings  int       `json:"total_warnings"`
	FirstVisit     time.Time `json:"first_visit"`
	LastVisit      time.Time `json:"last_visit"`
}
