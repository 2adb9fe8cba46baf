package trainerbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-puzzle-trainer/internal/config"
	"github.com/park285/cheese-puzzle-trainer/internal/puzzle"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
	"github.com/park285/cheese-puzzle-trainer/internal/recency"
	"github.com/park285/cheese-puzzle-trainer/internal/service/cache"
	"github.com/park285/cheese-puzzle-trainer/internal/service/training"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Deps struct {
	Service  *training.Service
	Selector *puzzle.Selector
	Tracker  *quota.Tracker
	Cache    *cache.CacheService
	Repo     training.Repository
	DB       *sql.DB
}

// New wires every component from cfg. Postgres and Redis are optional:
// without them the in-memory implementations are used.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db       *sql.DB
		cacheSvc *cache.CacheService
	)
	// backing stores come up in parallel
	g, gctx := errgroup.WithContext(ctx)
	if cfg.DatabaseURL != "" {
		g.Go(func() error {
			var err error
			db, err = openPostgres(gctx, cfg.DatabaseURL)
			return err
		})
	}
	if cfg.RedisURL != "" {
		g.Go(func() error {
			cconf, err := parseRedisURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("parse redis url: %w", err)
			}
			cacheSvc, err = cache.NewCacheService(*cconf, logger)
			if err != nil {
				return fmt.Errorf("init cache: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if db != nil {
			_ = db.Close()
		}
		if cacheSvc != nil {
			_ = cacheSvc.Close()
		}
		return nil, err
	}

	themes, err := loadThemes(cfg.ThemesFile)
	if err != nil {
		return nil, err
	}

	store := candidateStore(ctx, cfg, db, themes, logger)
	recent := recency.New(cfg.RecencyCapacity)
	selector := puzzle.NewSelector(store, recent, themes, puzzle.Config{
		QueryTimeout: cfg.CandidateTimeout,
	}, logger.Named("selector"))
	logger.Info("puzzle selector ready",
		zap.Int("recency_capacity", recent.Capacity()),
		zap.Strings("themes", themes.Keys()),
	)

	var repo training.Repository
	if db != nil {
		repo = training.NewRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, ratings and history are kept in memory")
		repo = training.NewMemoryRepository()
	}

	qstore, err := quotaStore(cfg, db, cacheSvc)
	if err != nil {
		return nil, err
	}
	tracker, err := quota.NewTracker(qstore, training.Accounts(repo), quota.Options{
		Limits:        cfg.Limits(),
		NoveltyWindow: cfg.NoveltyWindow,
		Location:      cfg.QuotaLocation,
		Logger:        logger.Named("quota"),
	})
	if err != nil {
		return nil, fmt.Errorf("init quota tracker: %w", err)
	}

	service, err := training.NewService(selector, tracker, repo, cacheSvc, training.Config{
		ProfileCacheTTL: cfg.ProfileCacheTTL,
		HistoryLimit:    cfg.HistoryLimit,
	}, logger.Named("training"))
	if err != nil {
		return nil, err
	}

	return &Deps{
		Service:  service,
		Selector: selector,
		Tracker:  tracker,
		Cache:    cacheSvc,
		Repo:     repo,
		DB:       db,
	}, nil
}

// Health pings every configured backing store concurrently.
func (d *Deps) Health(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if d.DB != nil {
		g.Go(func() error {
			if err := d.DB.PingContext(gctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return nil
		})
	}
	if d.Cache != nil {
		g.Go(func() error {
			if err := d.Cache.Ping(gctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close drains background writes and then closes connections.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Service != nil {
		errs = append(errs, d.Service.Close(ctx))
	}
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// basic pool settings
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func loadThemes(path string) (*puzzle.ThemeCatalog, error) {
	if strings.TrimSpace(path) != "" {
		c, err := puzzle.LoadThemeCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("load theme catalog: %w", err)
		}
		return c, nil
	}
	c, err := puzzle.DefaultThemeCatalog()
	if err != nil {
		return nil, fmt.Errorf("load default theme catalog: %w", err)
	}
	return c, nil
}

func candidateStore(ctx context.Context, cfg *config.AppConfig, db *sql.DB, themes *puzzle.ThemeCatalog, logger *zap.Logger) puzzle.CandidateStore {
	if db == nil {
		logger.Warn("no puzzle database configured, serving static fallback only")
		return puzzle.NewMemoryStore(nil)
	}
	pg := puzzle.NewPostgresStore(db)
	if cfg.CandidateSource == config.SourcePostgres {
		return pg
	}
	lctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	return puzzle.LoadPool(lctx, pg, themes, logger.Named("pool"))
}

func quotaStore(cfg *config.AppConfig, db *sql.DB, cacheSvc *cache.CacheService) (quota.Store, error) {
	switch cfg.ResolvedQuotaStore() {
	case config.QuotaStoreRedis:
		if cacheSvc == nil {
			return nil, errors.New("redis quota store requires REDIS_URL")
		}
		return quota.NewRedisStore(cacheSvc.Client(), cfg.NoveltyWindow), nil
	case config.QuotaStorePostgres:
		if db == nil {
			return nil, errors.New("postgres quota store requires DATABASE_URL")
		}
		return quota.NewPostgresStore(db), nil
	default:
		return quota.NewMemoryStore(), nil
	}
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if u.Path != "" {
		p := strings.TrimPrefix(u.Path, "/")
		if p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				db = n
			}
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
