package puzzle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"go.uber.org/zap"
)

// ErrCandidateStoreUnavailable marks a failed or timed out candidate query.
// The selector absorbs it and moves to the next stage.
var ErrCandidateStoreUnavailable = errors.New("candidate store unavailable")

// Filter constrains a candidate query. Zero values mean unconstrained.
type Filter struct {
	Theme        string
	ThemePattern string
	MinRating    int
	MaxRating    int
	MaxInclusive bool
	ExcludeIDs   []string
}

func (f Filter) ratingOK(r int) bool {
	if f.MinRating > 0 && r < f.MinRating {
		return false
	}
	if f.MaxRating > 0 {
		if f.MaxInclusive {
			return r <= f.MaxRating
		}
		return r < f.MaxRating
	}
	return true
}

// CandidateStore is the read contract the selector needs from puzzle
// storage. FindCandidates returns up to sampleSize matches in no particular
// order and must accept an empty Filter.
type CandidateStore interface {
	FindCandidates(ctx context.Context, filter Filter, sampleSize int) ([]domain.Puzzle, error)
	LoadAll(ctx context.Context) ([]domain.Puzzle, error)
}

// MemoryStore serves candidates from a pool held in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	puzzles []domain.Puzzle

	randMu sync.Mutex
	rand   *rand.Rand

	patMu    sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewMemoryStore(puzzles []domain.Puzzle) *MemoryStore {
	return NewMemoryStoreWithSeed(puzzles, time.Now().UnixNano())
}

func NewMemoryStoreWithSeed(puzzles []domain.Puzzle, seed int64) *MemoryStore {
	return &MemoryStore{
		puzzles:  append([]domain.Puzzle(nil), puzzles...),
		rand:     rand.New(rand.NewSource(seed)),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Replace swaps the whole pool.
func (m *MemoryStore) Replace(puzzles []domain.Puzzle) {
	m.mu.Lock()
	m.puzzles = append([]domain.Puzzle(nil), puzzles...)
	m.mu.Unlock()
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.puzzles)
}

func (m *MemoryStore) LoadAll(ctx context.Context) ([]domain.Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Puzzle(nil), m.puzzles...), nil
}

func (m *MemoryStore) FindCandidates(ctx context.Context, filter Filter, sampleSize int) ([]domain.Puzzle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCandidateStoreUnavailable, err)
	}
	var pat *regexp.Regexp
	if filter.ThemePattern != "" {
		p, err := m.pattern(filter.ThemePattern)
		if err != nil {
			return nil, fmt.Errorf("compile theme pattern: %w", err)
		}
		pat = p
	}
	exclude := make(map[string]struct{}, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		exclude[id] = struct{}{}
	}

	m.mu.RLock()
	matches := make([]domain.Puzzle, 0, 16)
	for _, p := range m.puzzles {
		if _, skip := exclude[p.ID]; skip {
			continue
		}
		if !filter.ratingOK(p.Rating) {
			continue
		}
		if filter.Theme != "" && !hasTheme(p.Themes, func(t string) bool { return t == filter.Theme }) {
			continue
		}
		if pat != nil && !hasTheme(p.Themes, pat.MatchString) {
			continue
		}
		matches = append(matches, p)
	}
	m.mu.RUnlock()

	if sampleSize <= 0 || len(matches) <= sampleSize {
		m.shuffle(matches)
		return matches, nil
	}
	m.shuffle(matches)
	return matches[:sampleSize], nil
}

func (m *MemoryStore) shuffle(ps []domain.Puzzle) {
	m.randMu.Lock()
	m.rand.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
	m.randMu.Unlock()
}

func (m *MemoryStore) pattern(expr string) (*regexp.Regexp, error) {
	m.patMu.Lock()
	defer m.patMu.Unlock()
	if p, ok := m.patterns[expr]; ok {
		return p, nil
	}
	p, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, err
	}
	m.patterns[expr] = p
	return p, nil
}

func hasTheme(themes []string, match func(string) bool) bool {
	for _, t := range themes {
		if match(t) {
			return true
		}
	}
	return false
}

// LoadPool bulk-reads source into an in-memory pool, normalising theme tags
// and category labels on the way in. A failed load yields an empty pool;
// the selector then serves the static fallback.
func LoadPool(ctx context.Context, source CandidateStore, themes *ThemeCatalog, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := NewMemoryStore(nil)
	if source == nil {
		logger.Warn("puzzle pool has no source, serving static fallback only")
		return pool
	}
	started := time.Now()
	all, err := source.LoadAll(ctx)
	if err != nil {
		logger.Error("puzzle pool load failed, serving static fallback only", zap.Error(err))
		return pool
	}
	pool.Replace(NormalizePuzzles(all, themes))
	logger.Info("puzzle pool loaded",
		zap.Int("puzzles", pool.Len()),
		zap.Duration("took", time.Since(started)),
	)
	return pool
}

// NormalizePuzzles rewrites theme tags to canonical keys and fills in a
// missing category from the rating.
func NormalizePuzzles(in []domain.Puzzle, themes *ThemeCatalog) []domain.Puzzle {
	out := make([]domain.Puzzle, 0, len(in))
	for _, p := range in {
		p.Themes = themes.CanonicalAll(p.Themes)
		if p.Category == "" {
			p.Category = BandForRating(p.Rating)
		}
		out = append(out, p)
	}
	return out
}
