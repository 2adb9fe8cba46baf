package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/domain"
	"go.uber.org/zap"
)

// Store persists one record per (user, feature). Get returns nil, nil when
// no record exists yet.
type Store interface {
	Get(ctx context.Context, userID string, feature Feature) (*domain.QuotaRecord, error)
	Put(ctx context.Context, userID string, feature Feature, rec *domain.QuotaRecord) error
}

// AccountLookup reports whether a user is on a paid plan.
type AccountLookup interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

type AccountLookupFunc func(ctx context.Context, userID string) (bool, error)

func (f AccountLookupFunc) IsPremium(ctx context.Context, userID string) (bool, error) {
	return f(ctx, userID)
}

type Options struct {
	Limits        map[Feature]int
	NoveltyWindow time.Duration
	// Location decides where a calendar day starts. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// Status is the answer to a quota check or increment. Remaining is -1 when
// Unlimited is set.
type Status struct {
	Feature      Feature `json:"feature"`
	Allowed      bool    `json:"allowed"`
	Remaining    int     `json:"remaining"`
	Limit        int     `json:"limit"`
	Count        int     `json:"count"`
	Unlimited    bool    `json:"unlimited,omitempty"`
	AlreadySeen  bool    `json:"already_seen,omitempty"`
	LimitReached bool    `json:"limit_reached,omitempty"`
}

// Err converts a denied status into a *QuotaExceededError.
func (s Status) Err() error {
	if s.Allowed && !s.LimitReached {
		return nil
	}
	return &QuotaExceededError{Feature: s.Feature, Limit: s.Limit, Remaining: 0}
}

type Tracker struct {
	store    Store
	accounts AccountLookup
	limits   map[Feature]int
	window   time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewTracker(store Store, accounts AccountLookup, opts Options) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("quota store is nil")
	}
	limits := DefaultLimits()
	for f, n := range opts.Limits {
		if _, ok := policies[f]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, f)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative limit for %s", f)
		}
		limits[f] = n
	}
	if opts.NoveltyWindow <= 0 {
		opts.NoveltyWindow = DefaultNoveltyWindow
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Tracker{
		store:    store,
		accounts: accounts,
		limits:   limits,
		window:   opts.NoveltyWindow,
		loc:      opts.Location,
		now:      opts.Now,
		logger:   opts.Logger,
	}, nil
}

func (t *Tracker) Limit(f Feature) int { return t.limits[f] }

// Check reports whether one more use of feature is allowed. Any reset the
// policy implies is applied to the answer but not written back.
func (t *Tracker) Check(ctx context.Context, userID string, feature Feature, key string) (Status, error) {
	policy, err := t.policy(feature)
	if err != nil {
		return Status{}, err
	}
	if t.premium(ctx, userID) {
		return t.unlimited(feature), nil
	}
	rec, err := t.load(ctx, userID, feature)
	if err != nil {
		return Status{}, err
	}
	now := t.now()
	t.reset(policy, rec, now)
	return t.evaluate(feature, policy, rec, normalizeKey(key), now), nil
}

// Validate rejects an increment that could never be recorded, without
// touching the store. Premium users pass regardless of key.
func (t *Tracker) Validate(ctx context.Context, userID string, feature Feature, key string) error {
	policy, err := t.policy(feature)
	if err != nil {
		return err
	}
	if policy != PolicyNovelty || normalizeKey(key) != "" {
		return nil
	}
	if t.premium(ctx, userID) {
		return nil
	}
	return ErrMissingKey
}

// Increment records one use. The reset runs first in the same operation,
// and a denied increment leaves the counter untouched.
func (t *Tracker) Increment(ctx context.Context, userID string, feature Feature, key string) (Status, error) {
	policy, err := t.policy(feature)
	if err != nil {
		return Status{}, err
	}
	// 프리미엄 확인이 키 검증보다 먼저
	if t.premium(ctx, userID) {
		return t.unlimited(feature), nil
	}
	key = normalizeKey(key)
	if policy == PolicyNovelty && key == "" {
		return Status{}, ErrMissingKey
	}
	rec, err := t.load(ctx, userID, feature)
	if err != nil {
		return Status{}, err
	}
	now := t.now()
	changed := t.reset(policy, rec, now)
	st := t.evaluate(feature, policy, rec, key, now)

	switch {
	case st.AlreadySeen:
		return st, nil
	case !st.Allowed:
		if changed {
			if err := t.store.Put(ctx, userID, feature, rec); err != nil {
				t.logger.Warn("quota reset write failed",
					zap.String("user_id", userID),
					zap.String("feature", string(feature)),
					zap.Error(err),
				)
			}
		}
		st.LimitReached = true
		return st, nil
	}

	switch policy {
	case PolicyNovelty:
		rec.Events = append(rec.Events, domain.QuotaEvent{Key: key, SeenAt: now})
	case PolicyOneShot:
		rec.Count++
		rec.Used = rec.Count >= t.limits[feature]
	default:
		rec.Count++
	}
	if err := t.store.Put(ctx, userID, feature, rec); err != nil {
		return Status{}, fmt.Errorf("write quota %s: %w", feature, err)
	}
	if policy == PolicyNovelty {
		return t.recheckNovelty(ctx, userID, feature, key, now)
	}
	return t.evaluate(feature, policy, rec, key, now), nil
}

// recheckNovelty는 삽입 후 레코드를 다시 읽는다. 동시 요청으로 고유 키 수가
// 한도를 넘으면 방금 넣은 키를 되돌린다.
func (t *Tracker) recheckNovelty(ctx context.Context, userID string, feature Feature, key string, now time.Time) (Status, error) {
	rec, err := t.load(ctx, userID, feature)
	if err != nil {
		return Status{}, err
	}
	t.reset(PolicyNovelty, rec, now)
	limit := t.limits[feature]
	if len(distinctKeys(rec.Events)) <= limit {
		st := t.evaluate(feature, PolicyNovelty, rec, key, now)
		st.AlreadySeen = false
		return st, nil
	}

	kept := rec.Events[:0]
	for _, ev := range rec.Events {
		if ev.Key != key {
			kept = append(kept, ev)
		}
	}
	rec.Events = kept
	if err := t.store.Put(ctx, userID, feature, rec); err != nil {
		return Status{}, fmt.Errorf("roll back quota %s: %w", feature, err)
	}
	t.logger.Info("novelty quota insert rolled back",
		zap.String("user_id", userID),
		zap.String("key", key),
	)
	st := t.evaluate(feature, PolicyNovelty, rec, key, now)
	st.Allowed = false
	st.LimitReached = true
	return st, nil
}

func (t *Tracker) policy(f Feature) (Policy, error) {
	p, ok := f.Policy()
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, f)
	}
	return p, nil
}

func (t *Tracker) premium(ctx context.Context, userID string) bool {
	if t.accounts == nil {
		return false
	}
	ok, err := t.accounts.IsPremium(ctx, userID)
	if err != nil {
		t.logger.Warn("account lookup failed, treating user as free tier",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	return ok
}

func (t *Tracker) unlimited(f Feature) Status {
	return Status{Feature: f, Allowed: true, Remaining: -1, Limit: t.limits[f], Unlimited: true}
}

func (t *Tracker) load(ctx context.Context, userID string, feature Feature) (*domain.QuotaRecord, error) {
	rec, err := t.store.Get(ctx, userID, feature)
	if err != nil {
		return nil, fmt.Errorf("read quota %s: %w", feature, err)
	}
	if rec == nil {
		return &domain.QuotaRecord{}, nil
	}
	return rec.Clone(), nil
}

func (t *Tracker) dayKey(now time.Time) string {
	return now.In(t.loc).Format("2006-01-02")
}

// reset은 정책별 초기화 규칙을 rec에 바로 적용하고 변경 여부를 반환.
func (t *Tracker) reset(policy Policy, rec *domain.QuotaRecord, now time.Time) bool {
	switch policy {
	case PolicyDaily:
		today := t.dayKey(now)
		if rec.LastResetDate == today {
			return false
		}
		rec.Count = 0
		rec.LastResetDate = today
		rec.LastReset = now
		return true
	case PolicyNovelty:
		cutoff := now.Add(-t.window)
		kept := make([]domain.QuotaEvent, 0, len(rec.Events))
		for _, ev := range rec.Events {
			if ev.SeenAt.After(cutoff) {
				kept = append(kept, ev)
			}
		}
		changed := len(kept) != len(rec.Events)
		rec.Events = kept
		if changed {
			rec.LastReset = now
		}
		return changed
	default:
		if rec.Used && rec.Count == 0 {
			rec.Count = 1
		}
		return false
	}
}

func (t *Tracker) evaluate(feature Feature, policy Policy, rec *domain.QuotaRecord, key string, now time.Time) Status {
	limit := t.limits[feature]
	st := Status{Feature: feature, Limit: limit}
	switch policy {
	case PolicyNovelty:
		seen := distinctKeys(rec.Events)
		_, st.AlreadySeen = seen[key]
		st.AlreadySeen = st.AlreadySeen && key != ""
		st.Count = len(seen)
		st.Allowed = st.Count < limit || st.AlreadySeen
	default:
		st.Count = rec.Count
		st.Allowed = rec.Count < limit
	}
	st.Remaining = max(0, limit-st.Count)
	return st
}

func distinctKeys(events []domain.QuotaEvent) map[string]struct{} {
	out := make(map[string]struct{}, len(events))
	for _, ev := range events {
		out[ev.Key] = struct{}{}
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
