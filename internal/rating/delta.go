package rating

import (
	"math"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/domain"
)

const (
	DefaultRating = 1200
	MinRating     = 100

	baseDelta = 20
	minGain   = 10
	maxGain   = 30
	gapScale  = 500.0
	gapBonus  = 10.0
)

// Result describes one applied rating change.
type Result struct {
	Track     Track
	OldRating int
	NewRating int
	Delta     int
}

// ComputeDelta returns the rating change for one scored attempt. Gains are
// clamped to [10,30] and losses to [-30,-10] whatever the rating gap.
func ComputeDelta(playerRating, opponentRating int, solved bool) int {
	gap := float64(opponentRating-playerRating) / gapScale
	gap = math.Max(-1, math.Min(1, gap))
	// half-up rounding keeps the delta monotonic across the sign change
	bonus := int(math.Floor(gap*gapBonus + 0.5))

	if solved {
		return clamp(baseDelta+bonus, minGain, maxGain)
	}
	return clamp(-baseDelta+bonus, -maxGain, -minGain)
}

// EnsureTracks initialises every missing track to DefaultRating. It reports
// whether the profile was changed.
func EnsureTracks(profile *domain.RatingProfile) bool {
	if profile == nil {
		return false
	}
	changed := false
	if profile.Ratings == nil {
		profile.Ratings = make(map[string]int, len(Tracks))
		changed = true
	}
	for _, t := range Tracks {
		if _, ok := profile.Ratings[string(t)]; !ok {
			profile.Ratings[string(t)] = DefaultRating
			changed = true
		}
	}
	return changed
}

// ApplyDelta scores one attempt against the named track of profile and
// mutates it in place. Persisting the profile is the caller's job.
func ApplyDelta(profile *domain.RatingProfile, track Track, opponentRating int, solved bool) (Result, error) {
	if !track.Valid() {
		return Result{}, &InvalidTrackError{Name: string(track)}
	}
	if profile == nil {
		profile = &domain.RatingProfile{}
	}
	EnsureTracks(profile)

	if opponentRating <= 0 {
		opponentRating = DefaultRating
	}

	old := profile.Ratings[string(track)]
	if old < MinRating {
		old = MinRating
	}
	delta := ComputeDelta(old, opponentRating, solved)
	next := old + delta
	if next < MinRating {
		next = MinRating
	}
	profile.Ratings[string(track)] = next
	profile.UpdatedAt = time.Now()

	return Result{Track: track, OldRating: old, NewRating: next, Delta: delta}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
