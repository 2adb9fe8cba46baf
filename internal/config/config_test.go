package config

import (
	"testing"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/quota"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RecencyCapacity != 100 || cfg.CandidateTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected selection defaults %+v", cfg)
	}
	if cfg.NoveltyWindow != 72*time.Hour || cfg.QuotaLocation != time.UTC {
		t.Fatalf("unexpected quota defaults %+v", cfg)
	}
	limits := cfg.Limits()
	def := quota.DefaultLimits()
	for f, n := range def {
		if limits[f] != n {
			t.Fatalf("limit %s = %d, want %d", f, limits[f], n)
		}
	}
	if cfg.ResolvedQuotaStore() != QuotaStoreMemory {
		t.Fatalf("no backends configured should resolve to memory")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LIMIT_OPENINGS", "5")
	t.Setenv("QUOTA_TIMEZONE", "Asia/Seoul")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("LEGACY_COERCION", "true")
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits()[quota.FeatureOpenings] != 5 || !cfg.LegacyCoercion {
		t.Fatalf("overrides not applied %+v", cfg)
	}
	if cfg.QuotaLocation.String() != "Asia/Seoul" {
		t.Fatalf("location = %v", cfg.QuotaLocation)
	}
	if cfg.ResolvedQuotaStore() != QuotaStoreRedis {
		t.Fatalf("expected redis quota store")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"CANDIDATE_SOURCE": "mongo",
		"QUOTA_STORE":      "redis",
		"RECENCY_CAPACITY": "0",
		"LIMIT_DEFENDER":   "-1",
		"QUOTA_TIMEZONE":   "Mars/Olympus",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}
