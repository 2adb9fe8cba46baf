package training

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/park285/cheese-puzzle-trainer/internal/domain"
)

// MemoryRepository is the in-process Repository used when no database is
// configured, and by tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*domain.RatingProfile
	attempts map[string][]*domain.Attempt // user -> oldest first
	accounts map[string]*domain.Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles: make(map[string]*domain.RatingProfile),
		attempts: make(map[string][]*domain.Attempt),
		accounts: make(map[string]*domain.Account),
	}
}

func (m *MemoryRepository) GetProfile(ctx context.Context, userID string) (*domain.RatingProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[userID].Clone(), nil
}

func (m *MemoryRepository) UpsertProfile(ctx context.Context, profile *domain.RatingProfile) error {
	if profile == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (m *MemoryRepository) InsertAttempt(ctx context.Context, a *domain.Attempt) error {
	if a == nil {
		return nil
	}
	cp := *a
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[cp.UserID] = append(m.attempts[cp.UserID], &cp)
	return nil
}

func (m *MemoryRepository) RecentAttempts(ctx context.Context, userID string, limit int) ([]*domain.Attempt, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.attempts[userID]
	out := make([]*domain.Attempt, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryRepository) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *acct
	return &cp, nil
}

// SetPremium records a user's plan.
func (m *MemoryRepository) SetPremium(userID string, premium bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[userID] = &domain.Account{UserID: userID, Premium: premium}
}
