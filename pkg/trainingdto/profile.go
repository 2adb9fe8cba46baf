package trainingdto

import "time"

type ProfileResponse struct {
	UserID    string         `json:"user_id"`
	Ratings   map[string]int `json:"ratings"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}
