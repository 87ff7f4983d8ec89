// Package store persists accounts in memory or Postgres.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"kyc/internal/account/models"
	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
)

// InMemoryStore is a map backed account store.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.UserID]*models.Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[id.UserID]*models.Account)}
}

func (s *InMemoryStore) Create(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return sentinel.ErrConflict
		}
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) UpdateKYC(_ context.Context, userID id.UserID, kyc scoring.AccountKYC, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	a.ApplyKYC(kyc, now)
	return nil
}

// List returns accounts ordered by creation time, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Account, error) {
	s.mu.RLock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.Status != nil && a.KYCStatus != *filter.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if filter.Offset >= len(out) {
		return []*models.Account{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) StatusCounts(_ context.Context) (models.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c models.StatusCounts
	for _, a := range s.accounts {
		c.Total++
		switch a.KYCStatus {
		case id.KYCStatusVerified:
			c.Verified++
		case id.KYCStatusUnderReview:
			c.UnderReview++
		case id.KYCStatusPending:
			c.Pending++
		}
	}
	return c, nil
}

// IDs returns every account id.
func (s *InMemoryStore) IDs(_ context.Context) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.UserID, 0, len(s.accounts))
	for userID := range s.accounts {
		out = append(out, userID)
	}
	return out, nil
}
