package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Feature names a free-tier gated product feature.
type Feature string

const (
	FeaturePuzzleRush     Feature = "puzzle_rush"
	FeatureDefender       Feature = "defender"
	FeatureEndgameTrainer Feature = "endgame_trainer"
	FeaturePuzzleTrainer  Feature = "puzzle_trainer"
	FeatureOpenings       Feature = "openings"
	FeatureReport40       Feature = "report_40"
	FeatureGuessTheMove   Feature = "guess_the_move"
)

// Policy is the reset rule a feature's counter follows.
type Policy int

const (
	// PolicyDaily resets the counter when the calendar day changes.
	PolicyDaily Policy = iota + 1
	// PolicyNovelty counts distinct keys seen within a rolling window.
	PolicyNovelty
	// PolicyOneShot never resets.
	PolicyOneShot
)

func (p Policy) String() string {
	switch p {
	case PolicyDaily:
		return "daily"
	case PolicyNovelty:
		return "novelty"
	case PolicyOneShot:
		return "one_shot"
	default:
		return "unknown"
	}
}

var policies = map[Feature]Policy{
	FeaturePuzzleRush:     PolicyDaily,
	FeatureDefender:       PolicyDaily,
	FeatureEndgameTrainer: PolicyDaily,
	FeaturePuzzleTrainer:  PolicyDaily,
	FeatureOpenings:       PolicyNovelty,
	FeatureReport40:       PolicyOneShot,
	FeatureGuessTheMove:   PolicyOneShot,
}

// Features lists every gated feature.
var Features = []Feature{
	FeaturePuzzleRush,
	FeatureDefender,
	FeatureEndgameTrainer,
	FeaturePuzzleTrainer,
	FeatureOpenings,
	FeatureReport40,
	FeatureGuessTheMove,
}

const DefaultNoveltyWindow = 72 * time.Hour

var (
	ErrUnknownFeature = errors.New("unknown quota feature")
	ErrMissingKey     = errors.New("novelty feature requires a key")
)

// DefaultLimits returns a fresh copy of the free-tier limits.
func DefaultLimits() map[Feature]int {
	return map[Feature]int{
		FeaturePuzzleRush:     3,
		FeatureDefender:       3,
		FeatureEndgameTrainer: 20,
		FeaturePuzzleTrainer:  20,
		FeatureOpenings:       3,
		FeatureReport40:       1,
		FeatureGuessTheMove:   1,
	}
}

func (f Feature) Policy() (Policy, bool) {
	p, ok := policies[f]
	return p, ok
}

// ParseFeature accepts the canonical name with either '-' or '_' separators.
func ParseFeature(raw string) (Feature, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.ReplaceAll(name, "-", "_")
	f := Feature(name)
	if _, ok := policies[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, raw)
	}
	return f, nil
}

// QuotaExceededError is returned when a free-tier user has no remaining uses.
type QuotaExceededError struct {
	Feature   Feature
	Limit     int
	Remaining int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: limit %d", e.Feature, e.Limit)
}
