package puzzle

import (
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/park285/cheese-puzzle-trainer/internal/rating"
)

const StaticFallbackID = "static-fallback"

// StaticFallback returns the built-in puzzle served when nothing else
// matches. Its rating is the midpoint of band, or the default rating.
func StaticFallback(band *Band) domain.Puzzle {
	r := rating.DefaultRating
	if band != nil {
		r = band.Midpoint()
	}
	return domain.Puzzle{
		ID:       StaticFallbackID,
		FEN:      "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5Q2/PPPP1PPP/RNB1K1NR w KQkq - 4 4",
		Moves:    []string{"f3f7"},
		Rating:   r,
		Themes:   []string{"mate_in_1", "attacking_f2_f7", "one_move"},
		Category: BandForRating(r),
	}
}

func IsStaticFallback(p domain.Puzzle) bool { return p.ID == StaticFallbackID }
