package trainingdto

type Puzzle struct {
	ID          string   `json:"id"`
	FEN         string   `json:"fen"`
	Moves       []string `json:"moves"`
	Rating      int      `json:"rating"`
	Themes      []string `json:"themes"`
	Category    string   `json:"category"`
	OpeningTags []string `json:"opening_tags,omitempty"`
}

type NextPuzzleResponse struct {
	Puzzle       Puzzle       `json:"puzzle"`
	Category     string       `json:"category"`
	Stage        string       `json:"stage"`
	Theme        string       `json:"theme,omitempty"`
	ThemeDisplay string       `json:"theme_display,omitempty"`
	SideToMove   string       `json:"side_to_move,omitempty"`
	Fallback     bool         `json:"fallback"`
	Quota        *QuotaStatus `json:"quota,omitempty"`
}
