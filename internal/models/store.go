package models

import "time"

// StoreInfo describes one provider-managed file search store.
type StoreInfo struct {
	Name            string    `json:"name"`
	DisplayName     string    `json:"display_name"`
	CreateTime      time.Time `json:"create_time,omitempty"`
	ActiveDocuments int64     `json:"active_documents,omitempty"`
}

// Statistics is the system-wide counter set shown on the dashboard.
type Statistics struct {
	TotalUsers    int `json:"total_users"`
	TotalSessions int `json:"total_sessions"`
	TotalMessages int `json:"total_messages"`
	TodaySessions int `json:"today_sessions"`
	TotalWarnings int `json:"total_warnings"`
}
