package rating

import (
	"fmt"
	"strings"
)

// Track names one of the independent skill ratings kept per user.
type Track string

const (
	TrackPuzzle          Track = "puzzle"
	TrackBlunder         Track = "blunder"
	TrackVisualization   Track = "visualization"
	TrackEndgame         Track = "endgame"
	TrackAdvantage       Track = "advantage"
	TrackResourcefulness Track = "resourcefulness"
	TrackDefender        Track = "defender"
)

// Tracks lists every recognised track in display order.
var Tracks = []Track{
	TrackPuzzle,
	TrackBlunder,
	TrackVisualization,
	TrackEndgame,
	TrackAdvantage,
	TrackResourcefulness,
	TrackDefender,
}

// legacy field spellings still sent by older clients
var trackAliases = map[string]Track{
	"puzzlerating":           TrackPuzzle,
	"puzzles":                TrackPuzzle,
	"blunderrating":          TrackBlunder,
	"blunder_rating":         TrackBlunder,
	"blunderavoidance":       TrackBlunder,
	"blunder_avoidance":      TrackBlunder,
	"visualisation":          TrackVisualization,
	"visualizationrating":    TrackVisualization,
	"visualization_rating":   TrackVisualization,
	"endgamerating":          TrackEndgame,
	"endgame_rating":         TrackEndgame,
	"advantagerating":        TrackAdvantage,
	"advantage_rating":       TrackAdvantage,
	"advantageconversion":    TrackAdvantage,
	"advantage_conversion":   TrackAdvantage,
	"resourcefulnessrating":  TrackResourcefulness,
	"resourcefulness_rating": TrackResourcefulness,
	"defenderrating":         TrackDefender,
	"defender_rating":        TrackDefender,
	"defensivemove":          TrackDefender,
	"defensive_move":         TrackDefender,
}

type InvalidTrackError struct {
	Name string
}

func (e *InvalidTrackError) Error() string {
	return fmt.Sprintf("invalid rating track %q", e.Name)
}

func (t Track) Valid() bool {
	for _, known := range Tracks {
		if t == known {
			return true
		}
	}
	return false
}

func (t Track) String() string { return string(t) }

// ParseTrack resolves a client supplied track name. Unknown names are
// rejected, never coerced.
func ParseTrack(raw string) (Track, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if t := Track(name); t.Valid() {
		return t, nil
	}
	if t, ok := trackAliases[name]; ok {
		return t, nil
	}
	return "", &InvalidTrackError{Name: raw}
}
