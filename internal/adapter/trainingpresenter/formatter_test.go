package trainingpresenter

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	corechess "github.com/park285/cheese-puzzle-trainer/internal/chess"
	"github.com/park285/cheese-puzzle-trainer/internal/msgcat"
	"github.com/park285/cheese-puzzle-trainer/internal/puzzle"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
	"github.com/park285/cheese-puzzle-trainer/internal/rating"
	"github.com/park285/cheese-puzzle-trainer/internal/service/training"
	"github.com/park285/cheese-puzzle-trainer/pkg/trainingdto"
)

func newTestFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	return NewFormatter(cat, 0)
}

func TestQuotaExceededResponse(t *testing.T) {
	f := newTestFormatter(t)
	resp := f.Error(fmt.Errorf("serve: %w", &quota.QuotaExceededError{Feature: quota.FeatureOpenings, Limit: 3}))
	if resp.Error.Code != trainingdto.CodeQuotaExceeded {
		t.Fatalf("code = %q", resp.Error.Code)
	}
	if resp.Remaining == nil || *resp.Remaining != 0 || resp.Limit == nil || *resp.Limit != 3 {
		t.Fatalf("expected remaining=0 limit=3, got %+v", resp)
	}
	if !strings.Contains(resp.Error.Message, "3 new openings in the last 3 days") {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
	if resp.UpgradeURL == "" {
		t.Fatalf("expected upgrade url")
	}
}

func TestErrorCodes(t *testing.T) {
	f := newTestFormatter(t)
	cases := []struct {
		err  error
		code string
	}{
		{&rating.InvalidTrackError{Name: "bullet"}, trainingdto.CodeInvalidTrack},
		{&puzzle.InvalidDifficultyError{Name: "gm"}, trainingdto.CodeInvalidDifficulty},
		{fmt.Errorf("%w: x", quota.ErrUnknownFeature), trainingdto.CodeUnknownFeature},
		{rating.ErrInvalidSolved, trainingdto.CodeBadRequest},
		{fmt.Errorf("resolve opening: %w e2e5", corechess.ErrIllegalMove), trainingdto.CodeBadRequest},
		{training.ErrPuzzleRequired, trainingdto.CodeBadRequest},
		{errors.New("boom"), trainingdto.CodeInternal},
	}
	for _, tc := range cases {
		if got := f.Error(tc.err).Error.Code; got != tc.code {
			t.Fatalf("%v: code = %q, want %q", tc.err, got, tc.code)
		}
	}
	if !f.Error(errors.New("boom")).Error.Retryable {
		t.Fatalf("internal errors are retryable")
	}
	if msg := f.Error(&rating.InvalidTrackError{Name: "bullet"}).Error.Message; !strings.Contains(msg, "bullet") {
		t.Fatalf("message should name the track: %q", msg)
	}
}

func TestFormatterWithoutCatalog(t *testing.T) {
	f := NewFormatter(nil, 0)
	if f.FeatureName(quota.FeatureDefender) != "defender" {
		t.Fatalf("expected raw feature name fallback")
	}
	if f.Error(errors.New("x")).Error.Message == "" {
		t.Fatalf("expected fallback message")
	}
}

func TestToDTOQuotaCarriesLimitReached(t *testing.T) {
	st := &quota.Status{Feature: quota.FeatureEndgameTrainer, Limit: 20, LimitReached: true}
	dto := ToDTOQuota(st)
	if !dto.LimitReached || dto.Allowed || dto.Remaining != 0 {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if ToDTOQuota(nil) != nil {
		t.Fatalf("nil status must map to nil")
	}
}
