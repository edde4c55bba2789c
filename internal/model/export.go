package model

import "time"

// RecommendationExport is the top-level JSON structure for recommendation export.
type RecommendationExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	UserID     string        `json:"user_id,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	Total      int           `json:"total"`
	Users      []UserHistory `json:"users"`
}

// UserHistory holds one user's stored recommendations for export.
type UserHistory struct {
	UserID          string                `json:"user_id"`
	RealTimeCount   int                   `json:"real_time_count"`
	RequestedCount  int                   `json:"requested_count"`
	Recommendations []MediaRecommendation `json:"recommendations"`
}
