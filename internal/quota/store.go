package quota

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps quota records in process. Used in tests and when no
// Redis or Postgres is configured.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.QuotaRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*domain.QuotaRecord)}
}

func memKey(userID string, f Feature) string { return userID + "\x00" + string(f) }

func (m *MemoryStore) Get(_ context.Context, userID string, f Feature) (*domain.QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[memKey(userID, f)].Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, userID string, f Feature, rec *domain.QuotaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[memKey(userID, f)] = rec.Clone()
	return nil
}

// RedisStore keeps each record as a JSON string under quota:<user>:<feature>.
type RedisStore struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisStore(rdb *redis.Client, noveltyWindow time.Duration) *RedisStore {
	if noveltyWindow <= 0 {
		noveltyWindow = DefaultNoveltyWindow
	}
	return &RedisStore{rdb: rdb, window: noveltyWindow}
}

func (s *RedisStore) key(userID string, f Feature) string {
	return "quota:" + strings.TrimSpace(userID) + ":" + string(f)
}

// ttl: 지난 일일/신규성 레코드가 쌓이지 않도록 만료. 1회성 레코드는 만료 없음.
func (s *RedisStore) ttl(f Feature) time.Duration {
	p, _ := f.Policy()
	switch p {
	case PolicyDaily:
		return 48 * time.Hour
	case PolicyNovelty:
		return s.window + 24*time.Hour
	default:
		return 0
	}
}

func (s *RedisStore) Get(ctx context.Context, userID string, f Feature) (*domain.QuotaRecord, error) {
	raw, err := s.rdb.Get(ctx, s.key(userID, f)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec domain.QuotaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode quota record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, userID string, f Feature, rec *domain.QuotaRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(userID, f), raw, s.ttl(f)).Err()
}

// PostgresStore keeps records as jsonb rows in usage_quotas.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Get(ctx context.Context, userID string, f Feature) (*domain.QuotaRecord, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM usage_quotas WHERE user_id = $1 AND feature = $2`,
		userID, string(f),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec domain.QuotaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode quota record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, userID string, f Feature, rec *domain.QuotaRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO usage_quotas (user_id, feature, record, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id, feature) DO UPDATE
SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		userID, string(f), raw,
	)
	return err
}
