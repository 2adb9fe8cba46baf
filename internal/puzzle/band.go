package puzzle

import (
	"fmt"
	"strings"
)

// Band is a named rating range, Min inclusive and Max exclusive except for
// the top bands whose upper bound is inclusive.
type Band struct {
	Name string
	Min  int
	Max  int
}

var (
	BandBeginner     = Band{Name: "beginner", Min: 800, Max: 1200}
	BandIntermediate = Band{Name: "intermediate", Min: 1200, Max: 1800}
	BandAdvanced     = Band{Name: "advanced", Min: 1800, Max: 3000}
	BandExpert       = Band{Name: "expert", Min: 2200, Max: 3000}
)

var bands = []Band{BandBeginner, BandIntermediate, BandAdvanced, BandExpert}

type InvalidDifficultyError struct {
	Name string
}

func (e *InvalidDifficultyError) Error() string {
	return fmt.Sprintf("invalid difficulty %q", e.Name)
}

// ParseBand resolves a difficulty name. An empty name means no band was
// requested and returns nil.
func ParseBand(raw string) (*Band, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return nil, nil
	}
	for i := range bands {
		if bands[i].Name == name {
			b := bands[i]
			return &b, nil
		}
	}
	return nil, &InvalidDifficultyError{Name: raw}
}

func (b Band) Contains(rating int) bool {
	if rating < b.Min {
		return false
	}
	if b.Max >= maxPuzzleRating {
		return rating <= b.Max
	}
	return rating < b.Max
}

func (b Band) Midpoint() int { return (b.Min + b.Max) / 2 }

const maxPuzzleRating = 3000

// BandForRating returns the label of the lowest non-overlapping band that
// contains rating. Ratings outside every band are bucketed at the nearest
// edge.
func BandForRating(rating int) string {
	switch {
	case rating < BandIntermediate.Min:
		return BandBeginner.Name
	case rating < BandAdvanced.Min:
		return BandIntermediate.Name
	default:
		return BandAdvanced.Name
	}
}
