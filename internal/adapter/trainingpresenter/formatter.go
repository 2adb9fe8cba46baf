package trainingpresenter

import (
	"errors"
	"time"

	corechess "github.com/park285/cheese-puzzle-trainer/internal/chess"
	"github.com/park285/cheese-puzzle-trainer/internal/msgcat"
	"github.com/park285/cheese-puzzle-trainer/internal/puzzle"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
	"github.com/park285/cheese-puzzle-trainer/internal/rating"
	"github.com/park285/cheese-puzzle-trainer/internal/service/training"
	"github.com/park285/cheese-puzzle-trainer/pkg/trainingdto"
)

// Formatter renders user-facing messages from the message catalog. Every
// method has a built-in fallback so a missing template never hides an error.
type Formatter struct {
	cat    *msgcat.Catalog
	window time.Duration
}

func NewFormatter(cat *msgcat.Catalog, noveltyWindow time.Duration) *Formatter {
	if noveltyWindow <= 0 {
		noveltyWindow = quota.DefaultNoveltyWindow
	}
	return &Formatter{cat: cat, window: noveltyWindow}
}

func (f *Formatter) FeatureName(feature quota.Feature) string {
	return f.cat.RenderOr("feature."+string(feature), nil, string(feature))
}

func (f *Formatter) QuotaExceeded(e *quota.QuotaExceededError) string {
	policy, _ := e.Feature.Policy()
	data := map[string]any{
		"Limit":       e.Limit,
		"FeatureName": f.FeatureName(e.Feature),
		"WindowDays":  int(f.window.Hours() / 24),
	}
	return f.cat.RenderOr("quota.exceeded."+policy.String(), data,
		"Free limit reached. Upgrade to premium for unlimited training.")
}

func (f *Formatter) PersistenceWarning() string {
	return f.cat.RenderOr("error.persistence_warning", nil, "Result not saved.")
}

// Error maps a service error to its response body. Unrecognised errors
// become a retryable internal error.
func (f *Formatter) Error(err error) trainingdto.ErrorResponse {
	var (
		trackErr *rating.InvalidTrackError
		bandErr  *puzzle.InvalidDifficultyError
		quotaErr *quota.QuotaExceededError
	)
	switch {
	case errors.As(err, &quotaErr):
		remaining, limit := 0, quotaErr.Limit
		return trainingdto.ErrorResponse{
			Error: trainingdto.DomainError{
				Code:    trainingdto.CodeQuotaExceeded,
				Message: f.QuotaExceeded(quotaErr),
			},
			Remaining:  &remaining,
			Limit:      &limit,
			UpgradeURL: f.cat.RenderOr("quota.upgrade_url", nil, ""),
		}
	case errors.As(err, &trackErr):
		return f.domain(trainingdto.CodeInvalidTrack, "error.invalid_track", map[string]any{"Name": trackErr.Name}, err)
	case errors.As(err, &bandErr):
		return f.domain(trainingdto.CodeInvalidDifficulty, "error.invalid_difficulty", map[string]any{"Name": bandErr.Name}, err)
	case errors.Is(err, quota.ErrUnknownFeature):
		return f.domain(trainingdto.CodeUnknownFeature, "error.unknown_feature", nil, err)
	case errors.Is(err, training.ErrUserRequired):
		return f.domain(trainingdto.CodeUserRequired, "error.user_required", nil, err)
	case errors.Is(err, quota.ErrMissingKey),
		errors.Is(err, training.ErrPuzzleRequired),
		errors.Is(err, rating.ErrInvalidSolved),
		errors.Is(err, rating.ErrInvalidRating),
		errors.Is(err, corechess.ErrIllegalMove):
		return f.domain(trainingdto.CodeBadRequest, "", nil, err)
	default:
		return trainingdto.ErrorResponse{Error: trainingdto.DomainError{
			Code:      trainingdto.CodeInternal,
			Message:   f.cat.RenderOr("error.internal", nil, "internal error"),
			Retryable: true,
		}}
	}
}

func (f *Formatter) domain(code, key string, data any, err error) trainingdto.ErrorResponse {
	msg := err.Error()
	if key != "" {
		msg = f.cat.RenderOr(key, data, msg)
	}
	return trainingdto.ErrorResponse{Error: trainingdto.DomainError{Code: code, Message: msg}}
}
