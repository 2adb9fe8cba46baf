package domain

import "time"

// Puzzle is an immutable training exercise. Moves are UCI, starting with the
// first scripted move from FEN.
type Puzzle struct {
	ID          string   `json:"id"`
	FEN         string   `json:"fen"`
	Moves       []string `json:"moves"`
	Rating      int      `json:"rating"`
	Themes      []string `json:"themes"`
	Category    string   `json:"category"`
	OpeningTags []string `json:"opening_tags,omitempty"`
}

// Attempt is one scored try at a puzzle.
type Attempt struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PuzzleID     string    `json:"puzzle_id"`
	Track        string    `json:"track"`
	PuzzleRating int       `json:"puzzle_rating"`
	Solved       bool      `json:"solved"`
	OldRating    int       `json:"old_rating"`
	NewRating    int       `json:"new_rating"`
	Delta        int       `json:"delta"`
	CreatedAt    time.Time `json:"created_at"`
}
