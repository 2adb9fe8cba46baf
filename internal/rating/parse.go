package rating

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidSolved = errors.New("solved must be a boolean")
	ErrInvalidRating = errors.New("rating must be a positive integer")
)

// ParseSolved is the strict API edge parser for the solved flag.
func ParseSolved(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidSolved, raw)
	}
}

// ParseOpponentRating is the strict API edge parser for a puzzle rating.
func ParseOpponentRating(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRating, raw)
	}
	return n, nil
}

// CoerceSolved reproduces the legacy truthy coercion: true, "true" and 1
// count as solved, anything else does not. Only used when legacy coercion
// is switched on.
func CoerceSolved(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "true" || s == "1"
	case int:
		return x == 1
	case int64:
		return x == 1
	case float64:
		return x == 1
	default:
		return false
	}
}

// CoerceRating reproduces the legacy default: anything that is not a finite
// positive number reads as DefaultRating.
func CoerceRating(v any) int {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case float64:
		f = x
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return DefaultRating
		}
		f = n
	default:
		return DefaultRating
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return DefaultRating
	}
	return int(math.Round(f))
}
