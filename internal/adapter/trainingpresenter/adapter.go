package trainingpresenter

import (
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
	"github.com/park285/cheese-puzzle-trainer/internal/service/training"
	"github.com/park285/cheese-puzzle-trainer/pkg/trainingdto"
)

func ToDTOPuzzle(p domain.Puzzle) trainingdto.Puzzle {
	return trainingdto.Puzzle{
		ID:          p.ID,
		FEN:         p.FEN,
		Moves:       append([]string(nil), p.Moves...),
		Rating:      p.Rating,
		Themes:      append([]string(nil), p.Themes...),
		Category:    p.Category,
		OpeningTags: append([]string(nil), p.OpeningTags...),
	}
}

func ToDTONextPuzzle(r *training.PuzzleResult) *trainingdto.NextPuzzleResponse {
	if r == nil {
		return nil
	}
	return &trainingdto.NextPuzzleResponse{
		Puzzle:       ToDTOPuzzle(r.Puzzle),
		Category:     r.Category,
		Stage:        r.Stage,
		Theme:        r.Theme,
		ThemeDisplay: r.ThemeDisplay,
		SideToMove:   r.SideToMove,
		Fallback:     r.Fallback,
		Quota:        ToDTOQuota(r.Quota),
	}
}

func ToDTOQuota(st *quota.Status) *trainingdto.QuotaStatus {
	if st == nil {
		return nil
	}
	return &trainingdto.QuotaStatus{
		Feature:      string(st.Feature),
		Allowed:      st.Allowed,
		Remaining:    st.Remaining,
		Limit:        st.Limit,
		Unlimited:    st.Unlimited,
		AlreadySeen:  st.AlreadySeen,
		LimitReached: st.LimitReached,
	}
}

func ToDTOAttempt(r *training.AttemptResult) *trainingdto.AttemptResponse {
	if r == nil {
		return nil
	}
	return &trainingdto.AttemptResponse{
		Track:     string(r.Track),
		OldRating: r.OldRating,
		NewRating: r.NewRating,
		Delta:     r.Delta,
		Quota:     ToDTOQuota(r.Quota),
	}
}

func ToDTOProfile(p *domain.RatingProfile) *trainingdto.ProfileResponse {
	if p == nil {
		return nil
	}
	ratings := make(map[string]int, len(p.Ratings))
	for k, v := range p.Ratings {
		ratings[k] = v
	}
	return &trainingdto.ProfileResponse{UserID: p.UserID, Ratings: ratings, UpdatedAt: p.UpdatedAt}
}

func ToDTOHistory(list []*domain.Attempt) *trainingdto.HistoryResponse {
	out := &trainingdto.HistoryResponse{Attempts: make([]trainingdto.Attempt, 0, len(list))}
	for _, a := range list {
		if a == nil {
			continue
		}
		out.Attempts = append(out.Attempts, trainingdto.Attempt{
			ID:           a.ID,
			PuzzleID:     a.PuzzleID,
			Track:        a.Track,
			PuzzleRating: a.PuzzleRating,
			Solved:       a.Solved,
			OldRating:    a.OldRating,
			NewRating:    a.NewRating,
			Delta:        a.Delta,
			CreatedAt:    a.CreatedAt,
		})
	}
	return out
}
