package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/park285/cheese-puzzle-trainer/internal/quota"
)

const (
	SourceMemory   = "memory"
	SourcePostgres = "postgres"

	QuotaStoreAuto     = "auto"
	QuotaStoreMemory   = "memory"
	QuotaStoreRedis    = "redis"
	QuotaStorePostgres = "postgres"
)

type AppConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ProfileCacheTTL time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"6h"`
	HistoryLimit    int           `envconfig:"HISTORY_LIMIT" default:"10"`

	// Puzzle selection
	RecencyCapacity  int           `envconfig:"RECENCY_CAPACITY" default:"100"`
	CandidateTimeout time.Duration `envconfig:"CANDIDATE_TIMEOUT" default:"1500ms"`
	// memory: bulk load at startup and select in process; postgres: query per request
	CandidateSource string `envconfig:"CANDIDATE_SOURCE" default:"memory"`
	ThemesFile      string `envconfig:"THEMES_FILE"`

	// Quotas
	QuotaStore    string         `envconfig:"QUOTA_STORE" default:"auto"`
	QuotaTimezone string         `envconfig:"QUOTA_TIMEZONE" default:"UTC"`
	QuotaLocation *time.Location `ignored:"true"`
	NoveltyWindow time.Duration  `envconfig:"NOVELTY_WINDOW" default:"72h"`

	LimitPuzzleRush     int `envconfig:"LIMIT_PUZZLE_RUSH" default:"3"`
	LimitDefender       int `envconfig:"LIMIT_DEFENDER" default:"3"`
	LimitEndgameTrainer int `envconfig:"LIMIT_ENDGAME_TRAINER" default:"20"`
	LimitPuzzleTrainer  int `envconfig:"LIMIT_PUZZLE_TRAINER" default:"20"`
	LimitOpenings       int `envconfig:"LIMIT_OPENINGS" default:"3"`
	LimitReport40       int `envconfig:"LIMIT_REPORT_40" default:"1"`
	LimitGuessTheMove   int `envconfig:"LIMIT_GUESS_THE_MOVE" default:"1"`

	MessagesDir    string `envconfig:"MESSAGES_DIR"`
	LegacyCoercion bool   `envconfig:"LEGACY_COERCION" default:"false"`

	Log LogConfig `envconfig:"LOG"`
}

// LogConfig fields are read as LOG_<NAME>.
type LogConfig struct {
	Level   string `envconfig:"LEVEL" default:"info"`
	Console bool   `envconfig:"TO_CONSOLE" default:"true"`
	ToFile  bool   `envconfig:"TO_FILE" default:"false"`
	File    string `envconfig:"FILE" default:"logs/trainer.log"`
	Format  string `envconfig:"FORMAT" default:"json"`
	Caller  bool   `envconfig:"CALLER" default:"false"`
}

// Load reads the environment into AppConfig and validates it.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.CandidateSource = strings.ToLower(strings.TrimSpace(cfg.CandidateSource))
	cfg.QuotaStore = strings.ToLower(strings.TrimSpace(cfg.QuotaStore))

	loc, err := time.LoadLocation(strings.TrimSpace(cfg.QuotaTimezone))
	if err != nil {
		return nil, fmt.Errorf("QUOTA_TIMEZONE: %w", err)
	}
	cfg.QuotaLocation = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.RecencyCapacity <= 0 {
		return errors.New("RECENCY_CAPACITY must be > 0")
	}
	if c.CandidateTimeout <= 0 {
		return errors.New("CANDIDATE_TIMEOUT must be > 0")
	}
	if c.NoveltyWindow <= 0 {
		return errors.New("NOVELTY_WINDOW must be > 0")
	}
	switch c.CandidateSource {
	case SourceMemory:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("CANDIDATE_SOURCE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported CANDIDATE_SOURCE %q", c.CandidateSource)
	}
	switch c.QuotaStore {
	case QuotaStoreAuto, QuotaStoreMemory:
	case QuotaStoreRedis:
		if c.RedisURL == "" {
			return errors.New("QUOTA_STORE=redis requires REDIS_URL")
		}
	case QuotaStorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("QUOTA_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported QUOTA_STORE %q", c.QuotaStore)
	}
	for f, n := range c.Limits() {
		if n < 0 {
			return fmt.Errorf("limit for %s must be >= 0", f)
		}
	}
	return nil
}

func (c *AppConfig) Limits() map[quota.Feature]int {
	return map[quota.Feature]int{
		quota.FeaturePuzzleRush:     c.LimitPuzzleRush,
		quota.FeatureDefender:       c.LimitDefender,
		quota.FeatureEndgameTrainer: c.LimitEndgameTrainer,
		quota.FeaturePuzzleTrainer:  c.LimitPuzzleTrainer,
		quota.FeatureOpenings:       c.LimitOpenings,
		quota.FeatureReport40:       c.LimitReport40,
		quota.FeatureGuessTheMove:   c.LimitGuessTheMove,
	}
}

// ResolvedQuotaStore turns "auto" into the most durable configured backend.
func (c *AppConfig) ResolvedQuotaStore() string {
	if c.QuotaStore != QuotaStoreAuto {
		return c.QuotaStore
	}
	switch {
	case c.RedisURL != "":
		return QuotaStoreRedis
	case c.DatabaseURL != "":
		return QuotaStorePostgres
	default:
		return QuotaStoreMemory
	}
}
