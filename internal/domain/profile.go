package domain

import "time"

// RatingProfile holds one rating per training track, keyed by track name.
// A missing key means the track has never been touched.
type RatingProfile struct {
	UserID    string         `json:"user_id"`
	Ratings   map[string]int `json:"ratings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (p *RatingProfile) Clone() *RatingProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Ratings = make(map[string]int, len(p.Ratings))
	for k, v := range p.Ratings {
		out.Ratings[k] = v
	}
	return &out
}

type Account struct {
	UserID  string
	Premium bool
}
