package puzzle

import (
	"context"
	"time"

	corechess "github.com/park285/cheese-puzzle-trainer/internal/chess"
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/park285/cheese-puzzle-trainer/internal/recency"
	"go.uber.org/zap"
)

const (
	DefaultQueryTimeout = 1500 * time.Millisecond
	defaultOversample   = 2
	anyCategory         = "any"

	StageExact         = "exact"
	StageFuzzyTheme    = "fuzzy_theme"
	StageAnyTheme      = "any_theme"
	StageUnconstrained = "unconstrained"
	StageStatic        = "static_fallback"
)

type Config struct {
	QueryTimeout time.Duration
	// Wanted is how many playable puzzles a stage needs; the store is asked
	// for Wanted*Oversample candidates.
	Wanted     int
	Oversample int
}

// Selection is the outcome of one Select call.
type Selection struct {
	Puzzle       domain.Puzzle
	Category     string
	Stage        string
	Theme        string
	ThemeDisplay string
	Fallback     bool
}

// Selector picks a puzzle for a theme and difficulty band. It never fails:
// when every stage comes up empty it serves the static fallback puzzle.
type Selector struct {
	store    CandidateStore
	recency  *recency.Filter
	themes   *ThemeCatalog
	cfg      Config
	validate func(domain.Puzzle) error
	logger   *zap.Logger
	stages   []stage
}

type query struct {
	theme string
	band  *Band
}

// stage is one link of the fallback chain. A stage that is not enabled for
// a query is skipped.
type stage struct {
	name    string
	enabled func(q query) bool
	filter  func(q query) Filter
	// relaxRecency lets the stage serve a recently served puzzle when
	// nothing fresh is left.
	relaxRecency bool
}

func defaultStages() []stage {
	return []stage{
		{
			name:    StageExact,
			enabled: func(q query) bool { return true },
			filter: func(q query) Filter {
				f := bandFilter(q.band)
				f.Theme = q.theme
				return f
			},
		},
		{
			name:    StageFuzzyTheme,
			enabled: func(q query) bool { return q.theme != "" },
			filter: func(q query) Filter {
				f := bandFilter(q.band)
				f.ThemePattern = FuzzyPattern(q.theme)
				return f
			},
		},
		{
			// A requested band is never dropped: beyond this point only
			// unbanded queries continue.
			name:    StageAnyTheme,
			enabled: func(q query) bool { return q.band == nil && q.theme != "" },
			filter:  func(q query) Filter { return Filter{} },
		},
		{
			name:         StageUnconstrained,
			enabled:      func(q query) bool { return q.band == nil },
			filter:       func(q query) Filter { return Filter{} },
			relaxRecency: true,
		},
	}
}

func bandFilter(b *Band) Filter {
	if b == nil {
		return Filter{}
	}
	return Filter{MinRating: b.Min, MaxRating: b.Max, MaxInclusive: b.Max >= maxPuzzleRating}
}

func NewSelector(store CandidateStore, filter *recency.Filter, themes *ThemeCatalog, cfg Config, logger *zap.Logger) *Selector {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Wanted <= 0 {
		cfg.Wanted = 1
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = defaultOversample
	}
	if filter == nil {
		filter = recency.New(recency.DefaultCapacity)
	}
	if themes == nil {
		themes, _ = DefaultThemeCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		store:    store,
		recency:  filter,
		themes:   themes,
		cfg:      cfg,
		validate: validatePuzzle,
		logger:   logger,
		stages:   defaultStages(),
	}
}

// Recency exposes the filter the selector consults, so callers can mark
// served puzzles in the same instance.
func (s *Selector) Recency() *recency.Filter { return s.recency }

func (s *Selector) Themes() *ThemeCatalog { return s.themes }

// CategoryKey is the recency category for a request.
func CategoryKey(band *Band, canonicalTheme string) string {
	b, t := anyCategory, anyCategory
	if band != nil {
		b = band.Name
	}
	if canonicalTheme != "" {
		t = canonicalTheme
	}
	return b + ":" + t
}

// SelectByName parses difficulty and selects. An unknown difficulty is the
// only error it returns.
func (s *Selector) SelectByName(ctx context.Context, theme, difficulty string) (Selection, error) {
	band, err := ParseBand(difficulty)
	if err != nil {
		return Selection{}, err
	}
	return s.Select(ctx, theme, band), nil
}

func (s *Selector) Select(ctx context.Context, theme string, band *Band) Selection {
	q := query{theme: s.themes.Canonical(theme), band: band}
	category := CategoryKey(band, q.theme)

	for _, st := range s.stages {
		if !st.enabled(q) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if p, ok := s.runStage(ctx, st, q, category); ok {
			return s.selection(p, category, st.name, q.theme, false)
		}
	}

	s.logger.Info("puzzle selection fell back to static puzzle",
		zap.String("category", category),
		zap.String("theme", q.theme),
	)
	return s.selection(StaticFallback(band), category, StageStatic, q.theme, true)
}

func (s *Selector) runStage(ctx context.Context, st stage, q query, category string) (domain.Puzzle, bool) {
	if s.store == nil {
		return domain.Puzzle{}, false
	}
	f := st.filter(q)
	f.ExcludeIDs = s.recency.Snapshot(category)
	if st.relaxRecency {
		f.ExcludeIDs = nil
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	candidates, err := s.store.FindCandidates(qctx, f, s.cfg.Wanted*s.cfg.Oversample)
	if err != nil {
		s.logger.Warn("puzzle candidate query failed",
			zap.String("stage", st.name),
			zap.String("category", category),
			zap.Error(err),
		)
		return domain.Puzzle{}, false
	}

	var recent *domain.Puzzle
	for i := range candidates {
		p := candidates[i]
		if q.band != nil && !q.band.Contains(p.Rating) {
			continue
		}
		if err := s.validate(p); err != nil {
			s.logger.Debug("discarding unplayable puzzle",
				zap.String("puzzle_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		if s.recency.WasRecentlyServed(category, p.ID) {
			if recent == nil {
				recent = &candidates[i]
			}
			continue
		}
		return p, true
	}
	if st.relaxRecency && recent != nil {
		return *recent, true
	}
	s.logger.Debug("puzzle stage empty",
		zap.String("stage", st.name),
		zap.String("category", category),
		zap.Int("candidates", len(candidates)),
	)
	return domain.Puzzle{}, false
}

func (s *Selector) selection(p domain.Puzzle, category, stageName, theme string, fallback bool) Selection {
	out := Selection{
		Puzzle:   p,
		Category: category,
		Stage:    stageName,
		Theme:    theme,
		Fallback: fallback,
	}
	if theme != "" {
		out.ThemeDisplay = s.themes.Display(theme)
	}
	return out
}

func validatePuzzle(p domain.Puzzle) error {
	return corechess.ValidatePuzzle(p.FEN, p.Moves)
}
