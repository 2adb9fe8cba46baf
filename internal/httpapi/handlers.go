package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/park285/cheese-puzzle-trainer/internal/adapter/trainingpresenter"
	"github.com/park285/cheese-puzzle-trainer/internal/rating"
	"github.com/park285/cheese-puzzle-trainer/internal/service/training"
	"github.com/park285/cheese-puzzle-trainer/pkg/trainingdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var errBadBody = errors.New("request body is not valid JSON")

func (s *Server) handleHealth(rc *fasthttp.RequestCtx) {
	if s.opts.Health != nil {
		ctx, cancel := s.requestContext()
		defer cancel()
		if err := s.opts.Health(ctx); err != nil {
			s.writeJSON(rc, fasthttp.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	s.writeJSON(rc, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNextPuzzle(rc *fasthttp.RequestCtx) {
	args := rc.QueryArgs()
	ctx, cancel := s.requestContext()
	defer cancel()

	res, err := s.svc.ServePuzzle(ctx, training.ServeRequest{
		UserID:     userID(rc, ""),
		Feature:    string(args.Peek("feature")),
		Theme:      string(args.Peek("theme")),
		Difficulty: string(args.Peek("difficulty")),
	})
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, trainingpresenter.ToDTONextPuzzle(res))
}

func (s *Server) handleAttempt(rc *fasthttp.RequestCtx) {
	var body trainingdto.AttemptRequest
	if err := json.Unmarshal(rc.PostBody(), &body); err != nil {
		s.writeError(rc, fmt.Errorf("%w: %v", errBadBody, err))
		return
	}
	solved, opp, err := s.parseOutcome(body)
	if err != nil {
		s.writeError(rc, err)
		return
	}

	ctx, cancel := s.requestContext()
	defer cancel()
	res, err := s.svc.RecordAttempt(ctx, training.AttemptRequest{
		UserID:       userID(rc, body.UserID),
		PuzzleID:     body.PuzzleID,
		Track:        body.Track,
		PuzzleRating: opp,
		Solved:       solved,
		Feature:      body.Feature,
		QuotaKey:     body.QuotaKey,
	})
	var perr *training.PersistenceWriteError
	switch {
	case errors.As(err, &perr) && res != nil:
		resp := trainingpresenter.ToDTOAttempt(res)
		resp.Warning = s.formatter.PersistenceWarning()
		s.logger.Warn("attempt recorded with persistence warning", zap.String("op", perr.Op), zap.Error(perr.Err))
		s.writeJSON(rc, fasthttp.StatusOK, resp)
	case err != nil:
		s.writeError(rc, err)
	default:
		s.writeJSON(rc, fasthttp.StatusOK, trainingpresenter.ToDTOAttempt(res))
	}
}

// parseOutcome applies the strict typed boundary unless legacy coercion is
// on. Strict mode takes JSON booleans/numbers or their exact string forms.
func (s *Server) parseOutcome(body trainingdto.AttemptRequest) (bool, int, error) {
	if s.opts.LegacyCoercion {
		var solvedAny, ratingAny any
		_ = json.Unmarshal(body.Solved, &solvedAny)
		_ = json.Unmarshal(body.PuzzleRating, &ratingAny)
		return rating.CoerceSolved(solvedAny), rating.CoerceRating(ratingAny), nil
	}

	solved, err := strictSolved(body.Solved)
	if err != nil {
		return false, 0, err
	}
	opp, err := strictRating(body.PuzzleRating)
	if err != nil {
		return false, 0, err
	}
	return solved, opp, nil
}

func strictSolved(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return rating.ParseSolved(str)
	}
	return false, fmt.Errorf("%w: %s", rating.ErrInvalidSolved, string(raw))
}

func strictRating(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: %d", rating.ErrInvalidRating, n)
		}
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return rating.ParseOpponentRating(str)
	}
	return 0, fmt.Errorf("%w: %s", rating.ErrInvalidRating, string(raw))
}

func (s *Server) handleHistory(rc *fasthttp.RequestCtx) {
	limit, _ := strconv.Atoi(string(rc.QueryArgs().Peek("limit")))
	ctx, cancel := s.requestContext()
	defer cancel()
	list, err := s.svc.RecentAttempts(ctx, userID(rc, ""), limit)
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, trainingpresenter.ToDTOHistory(list))
}

func (s *Server) handleQuota(rc *fasthttp.RequestCtx) {
	ctx, cancel := s.requestContext()
	defer cancel()
	st, err := s.svc.CheckQuota(ctx, userID(rc, ""), string(rc.QueryArgs().Peek("feature")))
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, trainingpresenter.ToDTOQuota(&st))
}

func (s *Server) handleQuotaIncrement(rc *fasthttp.RequestCtx) {
	var body trainingdto.QuotaIncrementRequest
	if err := json.Unmarshal(rc.PostBody(), &body); err != nil {
		s.writeError(rc, fmt.Errorf("%w: %v", errBadBody, err))
		return
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	st, err := s.svc.IncrementQuota(ctx, userID(rc, body.UserID), body.Feature, training.QuotaMeta{Key: body.Key, Moves: body.Moves})
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, trainingpresenter.ToDTOQuota(&st))
}

func (s *Server) handleProfile(rc *fasthttp.RequestCtx) {
	ctx, cancel := s.requestContext()
	defer cancel()
	p, err := s.svc.Profile(ctx, userID(rc, ""))
	if err != nil {
		s.writeError(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, trainingpresenter.ToDTOProfile(p))
}
