package trainingdto

import (
	"encoding/json"
	"time"
)

// AttemptRequest is the POST /attempts body. Solved and PuzzleRating stay
// raw so the handler can apply strict or legacy parsing.
type AttemptRequest struct {
	UserID       string          `json:"user_id"`
	PuzzleID     string          `json:"puzzle_id"`
	Track        string          `json:"track"`
	PuzzleRating json.RawMessage `json:"puzzle_rating"`
	Solved       json.RawMessage `json:"solved"`
	Feature      string          `json:"feature,omitempty"`
	QuotaKey     string          `json:"quota_key,omitempty"`
}

type AttemptResponse struct {
	Track     string       `json:"track"`
	OldRating int          `json:"old_rating"`
	NewRating int          `json:"new_rating"`
	Delta     int          `json:"delta"`
	Quota     *QuotaStatus `json:"quota,omitempty"`
	Warning   string       `json:"warning,omitempty"`
}

type Attempt struct {
	ID           string    `json:"id"`
	PuzzleID     string    `json:"puzzle_id"`
	Track        string    `json:"track"`
	PuzzleRating int       `json:"puzzle_rating"`
	Solved       bool      `json:"solved"`
	OldRating    int       `json:"old_rating"`
	NewRating    int       `json:"new_rating"`
	Delta        int       `json:"delta"`
	CreatedAt    time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Attempts []Attempt `json:"attempts"`
}
