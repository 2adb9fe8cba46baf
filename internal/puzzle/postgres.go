package puzzle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
)

// PostgresStore reads puzzles from the puzzles table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const puzzleColumns = `id, fen, moves, rating, themes, category, opening_tags`

func (s *PostgresStore) FindCandidates(ctx context.Context, filter Filter, sampleSize int) ([]domain.Puzzle, error) {
	if sampleSize <= 0 {
		sampleSize = 1
	}
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Theme != "" {
		where = append(where, arg(filter.Theme)+" = ANY(themes)")
	}
	if filter.ThemePattern != "" {
		where = append(where, "EXISTS (SELECT 1 FROM unnest(themes) AS t WHERE t ~* "+arg(filter.ThemePattern)+")")
	}
	if filter.MinRating > 0 {
		where = append(where, "rating >= "+arg(filter.MinRating))
	}
	if filter.MaxRating > 0 {
		op := "<"
		if filter.MaxInclusive {
			op = "<="
		}
		where = append(where, "rating "+op+" "+arg(filter.MaxRating))
	}
	if len(filter.ExcludeIDs) > 0 {
		where = append(where, "NOT (id = ANY("+arg(pq.Array(filter.ExcludeIDs))+"))")
	}

	query := "SELECT " + puzzleColumns + " FROM puzzles"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY random() LIMIT " + arg(sampleSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select puzzle candidates: %v", ErrCandidateStoreUnavailable, err)
	}
	defer rows.Close()
	return scanPuzzles(rows, sampleSize)
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]domain.Puzzle, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+puzzleColumns+" FROM puzzles")
	if err != nil {
		return nil, fmt.Errorf("select puzzles: %w", err)
	}
	defer rows.Close()
	return scanPuzzles(rows, 1024)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Puzzle, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+puzzleColumns+" FROM puzzles WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("select puzzle: %w", err)
	}
	defer rows.Close()
	ps, err := scanPuzzles(rows, 1)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, nil
	}
	return &ps[0], nil
}

func scanPuzzles(rows *sql.Rows, capHint int) ([]domain.Puzzle, error) {
	out := make([]domain.Puzzle, 0, capHint)
	for rows.Next() {
		var (
			p        domain.Puzzle
			category sql.NullString
		)
		if err := rows.Scan(
			&p.ID,
			&p.FEN,
			pq.Array(&p.Moves),
			&p.Rating,
			pq.Array(&p.Themes),
			&category,
			pq.Array(&p.OpeningTags),
		); err != nil {
			return nil, fmt.Errorf("scan puzzle: %w", err)
		}
		p.Category = category.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrCandidateStoreUnavailable, err)
		}
		return nil, fmt.Errorf("iterate puzzles: %w", err)
	}
	return out, nil
}
