package training

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
	"github.com/park285/cheese-puzzle-trainer/internal/rating"
)

type Repository interface {
	// GetProfile returns nil, nil when the user has no profile yet.
	GetProfile(ctx context.Context, userID string) (*domain.RatingProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.RatingProfile) error
	InsertAttempt(ctx context.Context, attempt *domain.Attempt) error
	RecentAttempts(ctx context.Context, userID string, limit int) ([]*domain.Attempt, error)
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
}

// Accounts adapts repo for the quota tracker's premium check.
func Accounts(repo Repository) quota.AccountLookup {
	return quota.AccountLookupFunc(func(ctx context.Context, userID string) (bool, error) {
		acct, err := repo.GetAccount(ctx, userID)
		if err != nil {
			return false, err
		}
		return acct != nil && acct.Premium, nil
	})
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// player_ratings keeps one nullable column per track. NULL means the track
// was never touched.
func (r *repository) GetProfile(ctx context.Context, userID string) (*domain.RatingProfile, error) {
	const query = `
		SELECT
			puzzle_rating,
			blunder_rating,
			visualization_rating,
			endgame_rating,
			advantage_rating,
			resourcefulness_rating,
			defender_rating,
			created_at,
			updated_at
		FROM player_ratings
		WHERE user_id = $1`

	vals := make([]sql.NullInt64, len(rating.Tracks))
	dest := make([]any, 0, len(vals)+2)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	profile := &domain.RatingProfile{UserID: userID, Ratings: make(map[string]int, len(vals))}
	dest = append(dest, &profile.CreatedAt, &profile.UpdatedAt)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select rating profile: %w", err)
	}
	for i, t := range rating.Tracks {
		if vals[i].Valid {
			profile.Ratings[string(t)] = int(vals[i].Int64)
		}
	}
	return profile, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.RatingProfile) error {
	if profile == nil {
		return fmt.Errorf("nil rating profile")
	}
	const query = `
		INSERT INTO player_ratings (
			user_id,
			puzzle_rating,
			blunder_rating,
			visualization_rating,
			endgame_rating,
			advantage_rating,
			resourcefulness_rating,
			defender_rating,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			puzzle_rating = EXCLUDED.puzzle_rating,
			blunder_rating = EXCLUDED.blunder_rating,
			visualization_rating = EXCLUDED.visualization_rating,
			endgame_rating = EXCLUDED.endgame_rating,
			advantage_rating = EXCLUDED.advantage_rating,
			resourcefulness_rating = EXCLUDED.resourcefulness_rating,
			defender_rating = EXCLUDED.defender_rating,
			updated_at = EXCLUDED.updated_at`

	created := profile.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := profile.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	args := []any{profile.UserID}
	for _, t := range rating.Tracks {
		v, ok := profile.Ratings[string(t)]
		args = append(args, sql.NullInt64{Int64: int64(v), Valid: ok})
	}
	args = append(args, created, updated)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert rating profile: %w", err)
	}
	return nil
}

func (r *repository) InsertAttempt(ctx context.Context, a *domain.Attempt) error {
	if a == nil {
		return fmt.Errorf("nil attempt")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO puzzle_attempts (
			id,
			user_id,
			puzzle_id,
			track,
			puzzle_rating,
			solved,
			old_rating,
			new_rating,
			delta,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.PuzzleID, a.Track, a.PuzzleRating, a.Solved,
		a.OldRating, a.NewRating, a.Delta, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert puzzle attempt: %w", err)
	}
	return nil
}

func (r *repository) RecentAttempts(ctx context.Context, userID string, limit int) ([]*domain.Attempt, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT id, user_id, puzzle_id, track, puzzle_rating, solved, old_rating, new_rating, delta, created_at
		FROM puzzle_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select puzzle attempts: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Attempt, 0, limit)
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.PuzzleID, &a.Track, &a.PuzzleRating, &a.Solved,
			&a.OldRating, &a.NewRating, &a.Delta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan puzzle attempt: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzle attempts: %w", err)
	}
	return out, nil
}

func (r *repository) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	acct := &domain.Account{UserID: userID}
	err := r.db.QueryRowContext(ctx, `SELECT premium FROM accounts WHERE user_id = $1`, userID).Scan(&acct.Premium)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return acct, nil
}
