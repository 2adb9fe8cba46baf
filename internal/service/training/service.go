package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	corechess "github.com/park285/cheese-puzzle-trainer/internal/chess"
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/park285/cheese-puzzle-trainer/internal/puzzle"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
	"github.com/park285/cheese-puzzle-trainer/internal/rating"
	"github.com/park285/cheese-puzzle-trainer/internal/service/cache"
	"go.uber.org/zap"
)

const (
	defaultProfileCacheTTL = 6 * time.Hour
	defaultHistoryLimit    = 10
	maxHistoryLimit        = 50
)

// tracks whose attempts consume a daily quota without an explicit feature
var trackFeatures = map[rating.Track]quota.Feature{
	rating.TrackEndgame:  quota.FeatureEndgameTrainer,
	rating.TrackDefender: quota.FeatureDefender,
}

type Config struct {
	ProfileCacheTTL time.Duration
	HistoryLimit    int
	// WriteTimeout bounds each background attempt-history write.
	WriteTimeout time.Duration
	WriteBuffer  int
	// OnWriteDone observes background write outcomes. Optional.
	OnWriteDone func(op string, err error)
}

type Service struct {
	selector *puzzle.Selector
	quota    *quota.Tracker
	repo     Repository
	cache    *cache.CacheService
	writer   *asyncWriter
	cfg      Config
	logger   *zap.Logger
}

type ServeRequest struct {
	UserID     string
	Feature    string
	Theme      string
	Difficulty string
}

type PuzzleResult struct {
	Puzzle       domain.Puzzle
	Category     string
	Stage        string
	Theme        string
	ThemeDisplay string
	SideToMove   string
	Fallback     bool
	Quota        *quota.Status
}

type AttemptRequest struct {
	UserID       string
	PuzzleID     string
	Track        string
	PuzzleRating int
	Solved       bool
	// Feature overrides the track's default gating feature.
	Feature string
	// QuotaKey is the novelty key for features that need one.
	QuotaKey string
}

type AttemptResult struct {
	Track     rating.Track
	OldRating int
	NewRating int
	Delta     int
	Quota     *quota.Status
}

// QuotaMeta carries what a novelty increment needs. Moves, when given,
// are resolved to an ECO opening key.
type QuotaMeta struct {
	Key   string
	Moves []string
}

func NewService(selector *puzzle.Selector, tracker *quota.Tracker, repo Repository, cacheSvc *cache.CacheService, cfg Config, logger *zap.Logger) (*Service, error) {
	if selector == nil {
		return nil, fmt.Errorf("puzzle selector is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("quota tracker is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("training repository is required")
	}
	if cfg.ProfileCacheTTL <= 0 {
		cfg.ProfileCacheTTL = defaultProfileCacheTTL
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		selector: selector,
		quota:    tracker,
		repo:     repo,
		cache:    cacheSvc,
		writer:   newAsyncWriter(cfg.WriteBuffer, cfg.WriteTimeout, cfg.OnWriteDone, logger),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ServePuzzle checks the feature quota, selects a puzzle and marks it as
// served. The quota check runs before any candidate query.
func (s *Service) ServePuzzle(ctx context.Context, req ServeRequest) (*PuzzleResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	band, err := puzzle.ParseBand(req.Difficulty)
	if err != nil {
		return nil, err
	}

	var status *quota.Status
	if strings.TrimSpace(req.Feature) != "" {
		feature, err := quota.ParseFeature(req.Feature)
		if err != nil {
			return nil, err
		}
		st, err := s.quota.Check(ctx, userID, feature, "")
		switch {
		case err != nil:
			// 소프트 쿼터: 카운터를 못 읽어도 훈련은 막지 않는다
			s.logger.Warn("quota check failed, serving anyway",
				zap.String("user_id", userID),
				zap.String("feature", string(feature)),
				zap.Error(err),
			)
		case !st.Allowed:
			return nil, st.Err()
		default:
			status = &st
		}
	}

	sel := s.selector.Select(ctx, req.Theme, band)
	s.selector.Recency().MarkServed(sel.Category, sel.Puzzle.ID)

	side, err := corechess.SideToMove(sel.Puzzle.FEN)
	if err != nil {
		s.logger.Debug("side to move unavailable", zap.String("puzzle_id", sel.Puzzle.ID), zap.Error(err))
	}
	return &PuzzleResult{
		Puzzle:       sel.Puzzle,
		Category:     sel.Category,
		Stage:        sel.Stage,
		Theme:        sel.Theme,
		ThemeDisplay: sel.ThemeDisplay,
		SideToMove:   side,
		Fallback:     sel.Fallback,
		Quota:        status,
	}, nil
}

// RecordAttempt scores an attempt, persists the profile and then consumes
// quota for gated tracks. A *PersistenceWriteError comes back together with
// a usable result; any other error means no result.
func (s *Service) RecordAttempt(ctx context.Context, req AttemptRequest) (*AttemptResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if strings.TrimSpace(req.PuzzleID) == "" {
		return nil, ErrPuzzleRequired
	}
	track, err := rating.ParseTrack(req.Track)
	if err != nil {
		return nil, err
	}
	feature, gated, err := s.gatingFeature(track, req.Feature)
	if err != nil {
		return nil, err
	}
	// 계약 위반은 레이팅을 건드리기 전에 중단
	if gated {
		if err := s.quota.Validate(ctx, userID, feature, req.QuotaKey); err != nil {
			return nil, err
		}
	}

	profile, readErr := s.fetchProfile(ctx, userID)
	if readErr != nil && !errors.Is(readErr, ErrProfileNotFound) {
		// 기본값으로 결과만 계산. 읽지 못한 프로필은 절대 덮어쓰지 않는다.
		fresh := newProfile(userID)
		res, err := rating.ApplyDelta(fresh, track, req.PuzzleRating, req.Solved)
		if err != nil {
			return nil, err
		}
		s.logger.Error("rating profile read failed, result not persisted",
			zap.String("user_id", userID),
			zap.Error(readErr),
		)
		return attemptResult(res, nil), &PersistenceWriteError{Op: "read_profile", Err: readErr}
	}
	if profile == nil {
		profile = newProfile(userID)
	}

	res, err := rating.ApplyDelta(profile, track, req.PuzzleRating, req.Solved)
	if err != nil {
		return nil, err
	}
	out := attemptResult(res, nil)

	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		s.logger.Error("rating profile write failed, user-visible rating diverged",
			zap.String("user_id", userID),
			zap.String("track", string(track)),
			zap.Int("new_rating", res.NewRating),
			zap.Error(err),
		)
		s.invalidateProfile(ctx, userID)
		return out, &PersistenceWriteError{Op: "write_profile", Err: err}
	}
	s.cacheProfile(ctx, profile)

	var perr error
	if gated {
		st, err := s.quota.Increment(ctx, userID, feature, req.QuotaKey)
		if err != nil {
			s.logger.Warn("quota increment failed after rating update",
				zap.String("user_id", userID),
				zap.String("feature", string(feature)),
				zap.Error(err),
			)
			perr = &PersistenceWriteError{Op: "increment_quota", Err: err}
		} else {
			out.Quota = &st
		}
	}

	s.recordHistory(userID, req, res)
	return out, perr
}

func (s *Service) gatingFeature(track rating.Track, explicit string) (quota.Feature, bool, error) {
	if strings.TrimSpace(explicit) != "" {
		f, err := quota.ParseFeature(explicit)
		if err != nil {
			return "", false, err
		}
		return f, true, nil
	}
	f, ok := trackFeatures[track]
	return f, ok, nil
}

func (s *Service) recordHistory(userID string, req AttemptRequest, res rating.Result) {
	attempt := &domain.Attempt{
		ID:           uuid.NewString(),
		UserID:       userID,
		PuzzleID:     strings.TrimSpace(req.PuzzleID),
		Track:        string(res.Track),
		PuzzleRating: req.PuzzleRating,
		Solved:       req.Solved,
		OldRating:    res.OldRating,
		NewRating:    res.NewRating,
		Delta:        res.Delta,
		CreatedAt:    time.Now(),
	}
	s.writer.Submit("insert_attempt", func(ctx context.Context) error {
		return s.repo.InsertAttempt(ctx, attempt)
	})
}

func (s *Service) CheckQuota(ctx context.Context, userID, feature string) (quota.Status, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return quota.Status{}, ErrUserRequired
	}
	f, err := quota.ParseFeature(feature)
	if err != nil {
		return quota.Status{}, err
	}
	return s.quota.Check(ctx, userID, f, "")
}

// IncrementQuota consumes one use of feature. A refused increment returns
// the status together with a *quota.QuotaExceededError.
func (s *Service) IncrementQuota(ctx context.Context, userID, feature string, meta QuotaMeta) (quota.Status, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return quota.Status{}, ErrUserRequired
	}
	f, err := quota.ParseFeature(feature)
	if err != nil {
		return quota.Status{}, err
	}
	key := strings.TrimSpace(meta.Key)
	if key == "" && len(meta.Moves) > 0 {
		op, err := corechess.OpeningFromMoves(meta.Moves)
		if err != nil {
			return quota.Status{}, fmt.Errorf("resolve opening: %w", err)
		}
		key = op.Key()
	}
	st, err := s.quota.Increment(ctx, userID, f, key)
	if err != nil {
		return st, err
	}
	if st.LimitReached {
		return st, st.Err()
	}
	return st, nil
}

// Profile returns every track's rating, defaulting untouched tracks.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.RatingProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	profile, err := s.fetchProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		profile, err = newProfile(userID), nil
	}
	if err != nil {
		return nil, err
	}
	rating.EnsureTracks(profile)
	return profile, nil
}

func (s *Service) RecentAttempts(ctx context.Context, userID string, limit int) ([]*domain.Attempt, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.repo.RecentAttempts(ctx, userID, limit)
}

// Close drains pending background writes.
func (s *Service) Close(ctx context.Context) error {
	return s.writer.Close(ctx)
}

func (s *Service) profileCacheKey(userID string) string {
	return "profile:" + userID
}

func (s *Service) fetchProfile(ctx context.Context, userID string) (*domain.RatingProfile, error) {
	if s.cache != nil {
		cached := &domain.RatingProfile{}
		if err := s.cache.Get(ctx, s.profileCacheKey(userID), cached); err != nil {
			s.logger.Warn("profile cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if cached.UserID != "" {
			return cached, nil
		}
	}
	stored, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrProfileNotFound
	}
	s.cacheProfile(ctx, stored)
	return stored, nil
}

func (s *Service) cacheProfile(ctx context.Context, profile *domain.RatingProfile) {
	if s.cache == nil || profile == nil {
		return
	}
	if err := s.cache.Set(ctx, s.profileCacheKey(profile.UserID), profile, s.cfg.ProfileCacheTTL); err != nil {
		s.logger.Warn("failed to cache rating profile", zap.Error(err))
	}
}

func (s *Service) invalidateProfile(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.profileCacheKey(userID)); err != nil {
		s.logger.Warn("failed to drop cached rating profile", zap.Error(err))
	}
}

func newProfile(userID string) *domain.RatingProfile {
	now := time.Now()
	return &domain.RatingProfile{UserID: userID, CreatedAt: now, UpdatedAt: now}
}

func attemptResult(res rating.Result, st *quota.Status) *AttemptResult {
	return &AttemptResult{
		Track:     res.Track,
		OldRating: res.OldRating,
		NewRating: res.NewRating,
		Delta:     res.Delta,
		Quota:     st,
	}
}
