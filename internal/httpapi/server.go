package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/adapter/trainingpresenter"
	"github.com/park285/cheese-puzzle-trainer/internal/service/training"
	"github.com/park285/cheese-puzzle-trainer/pkg/trainingdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const userHeader = "X-User-Id"

type Options struct {
	// LegacyCoercion accepts loosely typed solved/puzzle_rating values.
	LegacyCoercion bool
	RequestTimeout time.Duration
	// Health reports backing store reachability for /healthz. Optional.
	Health func(ctx context.Context) error
}

type Server struct {
	svc       *training.Service
	formatter *trainingpresenter.Formatter
	opts      Options
	logger    *zap.Logger
}

func NewServer(svc *training.Service, formatter *trainingpresenter.Formatter, opts Options, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("training service is required")
	}
	if formatter == nil {
		formatter = trainingpresenter.NewFormatter(nil, 0)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, formatter: formatter, opts: opts, logger: logger}, nil
}

// Handler routes requests by method and path.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(rc *fasthttp.RequestCtx) {
		started := time.Now()
		method := string(rc.Method())
		path := string(rc.Path())

		switch {
		case path == "/healthz":
			s.handleHealth(rc)
		case path == "/puzzles/next" && method == fasthttp.MethodGet:
			s.handleNextPuzzle(rc)
		case path == "/attempts" && method == fasthttp.MethodPost:
			s.handleAttempt(rc)
		case path == "/attempts" && method == fasthttp.MethodGet:
			s.handleHistory(rc)
		case path == "/quota" && method == fasthttp.MethodGet:
			s.handleQuota(rc)
		case path == "/quota/increment" && method == fasthttp.MethodPost:
			s.handleQuotaIncrement(rc)
		case path == "/profile" && method == fasthttp.MethodGet:
			s.handleProfile(rc)
		case isRoute(path):
			rc.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		default:
			rc.Error("not found", fasthttp.StatusNotFound)
		}

		s.logger.Debug("http request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", rc.Response.StatusCode()),
			zap.Duration("took", time.Since(started)),
		)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "puzzle-trainer",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()
	s.logger.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	}
}

func isRoute(path string) bool {
	switch path {
	case "/puzzles/next", "/attempts", "/quota", "/quota/increment", "/profile":
		return true
	}
	return false
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opts.RequestTimeout)
}

// userID prefers the authenticated header and falls back to the query or
// body value.
func userID(rc *fasthttp.RequestCtx, fallback string) string {
	if v := strings.TrimSpace(string(rc.Request.Header.Peek(userHeader))); v != "" {
		return v
	}
	if v := strings.TrimSpace(string(rc.QueryArgs().Peek("user"))); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func (s *Server) writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", zap.Error(err))
		rc.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	rc.SetStatusCode(status)
	rc.SetContentType("application/json")
	rc.SetBody(raw)
}

func (s *Server) writeError(rc *fasthttp.RequestCtx, err error) {
	if errors.Is(err, errBadBody) {
		s.writeJSON(rc, fasthttp.StatusBadRequest, trainingdto.ErrorResponse{
			Error: trainingdto.DomainError{Code: trainingdto.CodeBadRequest, Message: err.Error()},
		})
		return
	}
	resp := s.formatter.Error(err)
	status := statusFor(resp.Error.Code)
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", string(rc.Path())), zap.Error(err))
	}
	s.writeJSON(rc, status, resp)
}

func statusFor(code string) int {
	switch code {
	case trainingdto.CodeQuotaExceeded:
		return fasthttp.StatusTooManyRequests
	case trainingdto.CodeInvalidTrack,
		trainingdto.CodeInvalidDifficulty,
		trainingdto.CodeUnknownFeature,
		trainingdto.CodeUserRequired,
		trainingdto.CodeBadRequest:
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}
