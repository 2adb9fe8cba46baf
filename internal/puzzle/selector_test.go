package puzzle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/park285/cheese-puzzle-trainer/internal/recency"
)

const (
	testStartFEN  = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	testMatedFEN  = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
	testLegalMove = "e2e4"
)

func legalPuzzle(id string, rating int, themes ...string) domain.Puzzle {
	return domain.Puzzle{ID: id, FEN: testStartFEN, Moves: []string{testLegalMove, "e7e5"}, Rating: rating, Themes: themes}
}

func newTestSelector(t *testing.T, puzzles []domain.Puzzle) *Selector {
	t.Helper()
	themes, err := DefaultThemeCatalog()
	if err != nil {
		t.Fatalf("DefaultThemeCatalog: %v", err)
	}
	store := NewMemoryStoreWithSeed(NormalizePuzzles(puzzles, themes), 42)
	return NewSelector(store, recency.New(50), themes, Config{QueryTimeout: time.Second}, nil)
}

func TestSelectExactMatch(t *testing.T) {
	s := newTestSelector(t, []domain.Puzzle{
		legalPuzzle("a", 1000, "fork"),
		legalPuzzle("b", 1500, "fork"),
		legalPuzzle("c", 1500, "pin"),
	})
	sel := s.Select(context.Background(), "fork", &BandIntermediate)
	if sel.Fallback || sel.Puzzle.ID != "b" || sel.Stage != StageExact {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if sel.Category != "intermediate:fork" || sel.ThemeDisplay != "Fork" {
		t.Fatalf("unexpected category/display: %q %q", sel.Category, sel.ThemeDisplay)
	}
}

func TestSelectFuzzyThemeStage(t *testing.T) {
	themes, _ := DefaultThemeCatalog()
	// raw tags bypass normalisation so only the fuzzy stage can match them
	store := NewMemoryStoreWithSeed([]domain.Puzzle{legalPuzzle("raw", 1300, "Back-Rank-Mate")}, 1)
	s := NewSelector(store, nil, themes, Config{}, nil)
	sel := s.Select(context.Background(), "backRankMate", &BandIntermediate)
	if sel.Fallback || sel.Puzzle.ID != "raw" || sel.Stage != StageFuzzyTheme {
		t.Fatalf("expected fuzzy stage match, got %+v", sel)
	}
}

func TestSelectNeverLeavesRequestedBand(t *testing.T) {
	s := newTestSelector(t, []domain.Puzzle{
		legalPuzzle("easy", 900, "fork"),
		legalPuzzle("mid", 1500, "pin"),
	})
	sel := s.Select(context.Background(), "fork", &BandAdvanced)
	if !sel.Fallback || sel.Stage != StageStatic {
		t.Fatalf("expected static fallback, got %+v", sel)
	}
	if sel.Puzzle.Rating != BandAdvanced.Midpoint() {
		t.Fatalf("fallback rating = %d, want %d", sel.Puzzle.Rating, BandAdvanced.Midpoint())
	}
	if !IsStaticFallback(sel.Puzzle) {
		t.Fatalf("expected the recognised static fallback")
	}
}

func TestSelectDropsThemeWithoutBand(t *testing.T) {
	s := newTestSelector(t, []domain.Puzzle{legalPuzzle("only", 2000, "skewer")})
	sel := s.Select(context.Background(), "fork", nil)
	if sel.Fallback || sel.Puzzle.ID != "only" || sel.Stage != StageAnyTheme {
		t.Fatalf("expected any-theme stage, got %+v", sel)
	}
}

func TestSelectBandWithoutTheme(t *testing.T) {
	s := newTestSelector(t, []domain.Puzzle{
		legalPuzzle("low", 900, "fork"),
		legalPuzzle("high", 2100, "pin"),
	})
	sel := s.Select(context.Background(), "", &BandAdvanced)
	if sel.Fallback || sel.Puzzle.ID != "high" {
		t.Fatalf("expected band-only match, got %+v", sel)
	}
	if sel.Category != "advanced:any" {
		t.Fatalf("unexpected category %q", sel.Category)
	}
}

func TestSelectEmptyStore(t *testing.T) {
	s := newTestSelector(t, nil)
	sel := s.Select(context.Background(), "", nil)
	if !sel.Fallback || sel.Puzzle.Rating != 1200 {
		t.Fatalf("expected 1200 static fallback, got %+v", sel)
	}
	if s := NewSelector(nil, nil, nil, Config{}, nil).Select(context.Background(), "fork", nil); !s.Fallback {
		t.Fatalf("nil store must still serve the fallback")
	}
}

func TestSelectSkipsUnplayablePuzzles(t *testing.T) {
	mated := domain.Puzzle{ID: "mated", FEN: testMatedFEN, Moves: []string{"e1f2"}, Rating: 1500, Themes: []string{"fork"}}
	illegal := domain.Puzzle{ID: "illegal", FEN: testStartFEN, Moves: []string{"e2e5"}, Rating: 1500, Themes: []string{"fork"}}
	s := newTestSelector(t, []domain.Puzzle{mated, illegal})
	sel := s.Select(context.Background(), "fork", &BandIntermediate)
	if !sel.Fallback {
		t.Fatalf("unplayable puzzles must not be served: %+v", sel)
	}
}

func TestSelectAvoidsRecentlyServed(t *testing.T) {
	var ps []domain.Puzzle
	for i := 0; i < 5; i++ {
		ps = append(ps, legalPuzzle(fmt.Sprintf("p%d", i), 1500, "fork"))
	}
	s := newTestSelector(t, ps)
	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		sel := s.Select(ctx, "fork", &BandIntermediate)
		if sel.Fallback {
			t.Fatalf("unexpected fallback on round %d", i)
		}
		if seen[sel.Puzzle.ID] {
			t.Fatalf("puzzle %s repeated on round %d", sel.Puzzle.ID, i)
		}
		seen[sel.Puzzle.ID] = true
		s.Recency().MarkServed(sel.Category, sel.Puzzle.ID)
	}
	// every banded puzzle is now recent: the band is kept, so static fallback
	if sel := s.Select(ctx, "fork", &BandIntermediate); !sel.Fallback {
		t.Fatalf("expected fallback once all banded puzzles are recent, got %s", sel.Puzzle.ID)
	}
	// without a band the last stage may repeat rather than go blank
	for _, p := range ps {
		s.Recency().MarkServed("any:any", p.ID)
	}
	if sel := s.Select(ctx, "", nil); sel.Fallback || sel.Stage != StageUnconstrained {
		t.Fatalf("expected unconstrained repeat, got %+v", sel)
	}
}

type failingStore struct{ calls int }

func (f *failingStore) FindCandidates(ctx context.Context, filter Filter, n int) ([]domain.Puzzle, error) {
	f.calls++
	return nil, ErrCandidateStoreUnavailable
}

func (f *failingStore) LoadAll(ctx context.Context) ([]domain.Puzzle, error) {
	return nil, errors.New("connection refused")
}

type slowStore struct{}

func (slowStore) FindCandidates(ctx context.Context, filter Filter, n int) ([]domain.Puzzle, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowStore) LoadAll(ctx context.Context) ([]domain.Puzzle, error) { return nil, nil }

func TestSelectAbsorbsStoreErrors(t *testing.T) {
	fs := &failingStore{}
	s := NewSelector(fs, nil, nil, Config{}, nil)
	sel := s.Select(context.Background(), "fork", nil)
	if !sel.Fallback {
		t.Fatalf("expected fallback on store failure")
	}
	if fs.calls != 4 {
		t.Fatalf("expected every stage to be attempted, got %d calls", fs.calls)
	}
}

func TestSelectQueryTimeout(t *testing.T) {
	s := NewSelector(slowStore{}, nil, nil, Config{QueryTimeout: 10 * time.Millisecond}, nil)
	started := time.Now()
	sel := s.Select(context.Background(), "", &BandBeginner)
	if !sel.Fallback {
		t.Fatalf("expected fallback on timeout")
	}
	if time.Since(started) > time.Second {
		t.Fatalf("timeout not applied")
	}
}

func TestSelectByNameRejectsUnknownDifficulty(t *testing.T) {
	s := newTestSelector(t, nil)
	if _, err := s.SelectByName(context.Background(), "fork", "impossible"); err == nil {
		t.Fatalf("expected InvalidDifficultyError")
	}
}

func TestLoadPoolFailureYieldsEmptyPool(t *testing.T) {
	pool := LoadPool(context.Background(), &failingStore{}, nil, nil)
	if pool == nil || pool.Len() != 0 {
		t.Fatalf("expected empty pool on load failure")
	}
	src := NewMemoryStore([]domain.Puzzle{{ID: "x", Rating: 1900, Themes: []string{"backRankMate"}}})
	themes, _ := DefaultThemeCatalog()
	pool = LoadPool(context.Background(), src, themes, nil)
	all, _ := pool.LoadAll(context.Background())
	if len(all) != 1 || all[0].Themes[0] != "back_rank_mate" || all[0].Category != "advanced" {
		t.Fatalf("pool not normalised: %+v", all)
	}
}

func TestStaticFallbackIsPlayable(t *testing.T) {
	if err := validatePuzzle(StaticFallback(nil)); err != nil {
		t.Fatalf("static fallback must be legal: %v", err)
	}
}
