package training

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/park285/cheese-puzzle-trainer/internal/puzzle"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
	"github.com/park285/cheese-puzzle-trainer/internal/rating"
	"github.com/park285/cheese-puzzle-trainer/internal/recency"
	"github.com/park285/cheese-puzzle-trainer/internal/service/cache"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// flakyRepo fails selected operations on demand.
type flakyRepo struct {
	*MemoryRepository
	failRead  bool
	failWrite bool
}

func (f *flakyRepo) GetProfile(ctx context.Context, userID string) (*domain.RatingProfile, error) {
	if f.failRead {
		return nil, errors.New("db read timeout")
	}
	return f.MemoryRepository.GetProfile(ctx, userID)
}

func (f *flakyRepo) UpsertProfile(ctx context.Context, p *domain.RatingProfile) error {
	if f.failWrite {
		return errors.New("db write timeout")
	}
	return f.MemoryRepository.UpsertProfile(ctx, p)
}

// countingSelectorStore counts candidate queries.
type countingSelectorStore struct {
	puzzle.CandidateStore
	mu    sync.Mutex
	calls int
}

func (c *countingSelectorStore) FindCandidates(ctx context.Context, f puzzle.Filter, n int) ([]domain.Puzzle, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.CandidateStore.FindCandidates(ctx, f, n)
}

type fixture struct {
	svc     *Service
	repo    *flakyRepo
	store   *countingSelectorStore
	quotas  *quota.MemoryStore
	cache   *cache.CacheService
	writes  chan string
	tracker *quota.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var puzzles []domain.Puzzle
	for i := 0; i < 4; i++ {
		puzzles = append(puzzles, domain.Puzzle{
			ID: fmt.Sprintf("p%d", i), FEN: startFEN, Moves: []string{"e2e4"},
			Rating: 1300 + i*10, Themes: []string{"fork"},
		})
	}
	store := &countingSelectorStore{CandidateStore: puzzle.NewMemoryStoreWithSeed(puzzles, 7)}
	sel := puzzle.NewSelector(store, recency.New(10), nil, puzzle.Config{}, nil)

	repo := &flakyRepo{MemoryRepository: NewMemoryRepository()}
	repo.SetPremium("vip", true)
	quotas := quota.NewMemoryStore()
	tracker, err := quota.NewTracker(quotas, Accounts(repo), quota.Options{})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	host, portStr, _ := strings.Cut(mr.Addr(), ":")
	port, _ := strconv.Atoi(portStr)
	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{Host: host, Port: port}, nil)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}
	t.Cleanup(func() { _ = cacheSvc.Close() })

	writes := make(chan string, 16)
	svc, err := NewService(sel, tracker, repo, cacheSvc, Config{
		OnWriteDone: func(op string, err error) {
			if err == nil {
				writes <- op
			}
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return &fixture{svc: svc, repo: repo, store: store, quotas: quotas, cache: cacheSvc, writes: writes, tracker: tracker}
}

func TestServePuzzleMarksServed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		res, err := f.svc.ServePuzzle(ctx, ServeRequest{UserID: "u1", Theme: "fork", Difficulty: "intermediate"})
		if err != nil {
			t.Fatalf("ServePuzzle: %v", err)
		}
		if res.Fallback || seen[res.Puzzle.ID] {
			t.Fatalf("round %d: unexpected %+v", i, res)
		}
		if res.SideToMove != "white" {
			t.Fatalf("side to move = %q", res.SideToMove)
		}
		seen[res.Puzzle.ID] = true
	}
}

func TestServePuzzleQuotaCheckedBeforeQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")
	_ = f.quotas.Put(ctx, "u1", quota.FeaturePuzzleRush, &domain.QuotaRecord{Count: 3, LastResetDate: today})

	_, err := f.svc.ServePuzzle(ctx, ServeRequest{UserID: "u1", Feature: "puzzle_rush"})
	var qe *quota.QuotaExceededError
	if !errors.As(err, &qe) || qe.Remaining != 0 || qe.Limit != 3 {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if f.store.calls != 0 {
		t.Fatalf("no candidate query may run after a refused quota, got %d", f.store.calls)
	}

	if _, err := f.svc.ServePuzzle(ctx, ServeRequest{UserID: "vip", Feature: "puzzle_rush"}); err != nil {
		t.Fatalf("premium must bypass: %v", err)
	}
}

func TestServePuzzleRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var de *puzzle.InvalidDifficultyError
	if _, err := f.svc.ServePuzzle(ctx, ServeRequest{UserID: "u1", Difficulty: "grandmaster"}); !errors.As(err, &de) {
		t.Fatalf("expected InvalidDifficultyError, got %v", err)
	}
	if _, err := f.svc.ServePuzzle(ctx, ServeRequest{UserID: "u1", Feature: "nope"}); !errors.Is(err, quota.ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
	if _, err := f.svc.ServePuzzle(ctx, ServeRequest{}); !errors.Is(err, ErrUserRequired) {
		t.Fatalf("expected ErrUserRequired, got %v", err)
	}
}

func TestRecordAttemptUpdatesProfileAndQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "u1", PuzzleID: "p1", Track: "endgameRating", PuzzleRating: 1200, Solved: true})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if res.Track != rating.TrackEndgame || res.OldRating != 1200 || res.NewRating != 1220 || res.Delta != 20 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Quota == nil || res.Quota.Count != 1 || res.Quota.Remaining != 19 {
		t.Fatalf("expected endgame quota consumed, got %+v", res.Quota)
	}

	stored, _ := f.repo.MemoryRepository.GetProfile(ctx, "u1")
	if stored == nil || len(stored.Ratings) != len(rating.Tracks) || stored.Ratings["endgame"] != 1220 {
		t.Fatalf("expected all tracks persisted, got %+v", stored)
	}

	select {
	case op := <-f.writes:
		if op != "insert_attempt" {
			t.Fatalf("unexpected background op %q", op)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("attempt history was not written")
	}
	hist, err := f.svc.RecentAttempts(ctx, "u1", 5)
	if err != nil || len(hist) != 1 || hist[0].NewRating != 1220 {
		t.Fatalf("unexpected history %+v %v", hist, err)
	}
}

func TestRecordAttemptUngatedTrack(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.RecordAttempt(context.Background(), AttemptRequest{UserID: "u1", PuzzleID: "p1", Track: "visualization", PuzzleRating: 1700, Solved: false})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if res.Quota != nil {
		t.Fatalf("ungated track must not touch quota")
	}
	if res.Delta != -10 || res.NewRating != 1190 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRecordAttemptWriteFailureKeepsQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.failWrite = true

	res, err := f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "u1", PuzzleID: "p1", Track: "defender", PuzzleRating: 1200, Solved: true})
	var pe *PersistenceWriteError
	if !errors.As(err, &pe) || pe.Op != "write_profile" {
		t.Fatalf("expected PersistenceWriteError, got %v", err)
	}
	if res == nil || res.NewRating != 1220 {
		t.Fatalf("computed result must still be returned, got %+v", res)
	}
	st, _ := f.tracker.Check(ctx, "u1", quota.FeatureDefender, "")
	if st.Count != 0 {
		t.Fatalf("failed write must not consume quota, count=%d", st.Count)
	}
}

func TestRecordAttemptReadFailureDoesNotOverwrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.repo.MemoryRepository.UpsertProfile(ctx, &domain.RatingProfile{UserID: "u2", Ratings: map[string]int{"puzzle": 1800}})
	f.repo.failRead = true

	res, err := f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "u2", PuzzleID: "p1", Track: "puzzle", PuzzleRating: 1200, Solved: true})
	var pe *PersistenceWriteError
	if !errors.As(err, &pe) || pe.Op != "read_profile" || res == nil {
		t.Fatalf("expected read warning with result, got %+v %v", res, err)
	}
	f.repo.failRead = false
	stored, _ := f.repo.MemoryRepository.GetProfile(ctx, "u2")
	if stored.Ratings["puzzle"] != 1800 {
		t.Fatalf("profile must not be overwritten, got %d", stored.Ratings["puzzle"])
	}
}

func TestRecordAttemptUsesCachedProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "u3", PuzzleID: "p1", Track: "blunder", PuzzleRating: 1200, Solved: true}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	// reads now come from the cache even when the database is unreachable
	f.repo.failRead = true
	res, err := f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "u3", PuzzleID: "p1", Track: "blunder", PuzzleRating: 1200, Solved: true})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if res.OldRating != 1220 {
		t.Fatalf("expected cached rating 1220, got %d", res.OldRating)
	}
}

func TestRecordAttemptRejectsBadTrack(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordAttempt(context.Background(), AttemptRequest{UserID: "u1", PuzzleID: "p1", Track: "bullet"})
	var te *rating.InvalidTrackError
	if !errors.As(err, &te) {
		t.Fatalf("expected InvalidTrackError, got %v", err)
	}
}

func TestRecordAttemptIgnoresUndecodableCachedProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.repo.MemoryRepository.UpsertProfile(ctx, &domain.RatingProfile{UserID: "u4", Ratings: map[string]int{"puzzle": 1800}})
	raw := `{"user_id":"u4","ratings":{"puzzle":"oops","endgame":1500}}`
	if err := f.cache.Client().Set(ctx, "profile:u4", raw, 0).Err(); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	res, err := f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "u4", PuzzleID: "p1", Track: "puzzle", PuzzleRating: 1800, Solved: true})
	if err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if res.OldRating != 1800 || res.NewRating != 1820 {
		t.Fatalf("expected stored rating to be used, got %+v", res)
	}
	stored, _ := f.repo.MemoryRepository.GetProfile(ctx, "u4")
	if stored.Ratings["puzzle"] != 1820 {
		t.Fatalf("stored rating = %d", stored.Ratings["puzzle"])
	}
}

func TestRecordAttemptNoveltyFeatureWithoutKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "u1", PuzzleID: "p1", Track: "puzzle", PuzzleRating: 1200, Solved: true, Feature: "openings"})
	if !errors.Is(err, quota.ErrMissingKey) || res != nil {
		t.Fatalf("expected ErrMissingKey and no result, got %+v %v", res, err)
	}
	var pe *PersistenceWriteError
	if errors.As(err, &pe) {
		t.Fatalf("client error reported as persistence failure: %v", err)
	}
	if stored, _ := f.repo.MemoryRepository.GetProfile(ctx, "u1"); stored != nil {
		t.Fatalf("rating must not be written, got %+v", stored)
	}

	res, err = f.svc.RecordAttempt(ctx, AttemptRequest{UserID: "vip", PuzzleID: "p1", Track: "puzzle", PuzzleRating: 1200, Solved: true, Feature: "openings"})
	if err != nil || res.Quota == nil || !res.Quota.Unlimited {
		t.Fatalf("premium attempt should pass unlimited, got %+v %v", res, err)
	}
}

func TestRecordAttemptRequiresPuzzleID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordAttempt(context.Background(), AttemptRequest{UserID: "u1", PuzzleID: " ", Track: "puzzle", PuzzleRating: 1200, Solved: true})
	if !errors.Is(err, ErrPuzzleRequired) {
		t.Fatalf("expected ErrPuzzleRequired, got %v", err)
	}
}

func TestIncrementQuotaResolvesOpening(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sicilian := []string{"e2e4", "c7c5"}

	st, err := f.svc.IncrementQuota(ctx, "u1", "openings", QuotaMeta{Moves: sicilian})
	if err != nil || st.Count != 1 {
		t.Fatalf("IncrementQuota: %+v %v", st, err)
	}
	st, err = f.svc.IncrementQuota(ctx, "u1", "openings", QuotaMeta{Moves: sicilian})
	if err != nil || !st.AlreadySeen || st.Count != 1 {
		t.Fatalf("same opening must not consume a slot: %+v %v", st, err)
	}
	for _, k := range []string{"x1", "x2"} {
		if _, err := f.svc.IncrementQuota(ctx, "u1", "openings", QuotaMeta{Key: k}); err != nil {
			t.Fatalf("IncrementQuota %s: %v", k, err)
		}
	}
	_, err = f.svc.IncrementQuota(ctx, "u1", "openings", QuotaMeta{Key: "x3"})
	var qe *quota.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if _, err := f.svc.IncrementQuota(ctx, "u1", "openings", QuotaMeta{Moves: []string{"e2e5"}}); err == nil {
		t.Fatalf("illegal moves must fail")
	}
}

func TestProfileDefaultsAllTracks(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Profile(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	for _, tr := range rating.Tracks {
		if p.Ratings[string(tr)] != rating.DefaultRating {
			t.Fatalf("track %s = %d", tr, p.Ratings[string(tr)])
		}
	}
}

func TestAsyncWriterDrainsOnClose(t *testing.T) {
	var mu sync.Mutex
	done := 0
	w := newAsyncWriter(1, time.Second, func(string, error) {
		mu.Lock()
		done++
		mu.Unlock()
	}, nil)
	for i := 0; i < 5; i++ {
		w.Submit("op", func(ctx context.Context) error { return nil })
	}
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	w.Submit("late", func(ctx context.Context) error { return errors.New("boom") })
	mu.Lock()
	defer mu.Unlock()
	if done != 6 {
		t.Fatalf("expected every task to complete, got %d", done)
	}
}
