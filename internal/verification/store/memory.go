// Package store persists verification scores and history.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"kyc/internal/verification/models"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
)

// InMemoryStore keeps one score per user and an append-only history.
type InMemoryStore struct {
	mu      sync.RWMutex
	scores  map[id.UserID]models.Score
	history map[id.UserID][]models.HistoryEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		scores:  make(map[id.UserID]models.Score),
		history: make(map[id.UserID][]models.HistoryEntry),
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, score *models.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.UserID] = *score
	return nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*models.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &score, nil
}

func (s *InMemoryStore) AppendHistory(_ context.Context, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.UserID] = append(s.history[entry.UserID], entry)
	return nil
}

// History returns the user's entries, oldest first.
func (s *InMemoryStore) History(_ context.Context, userID id.UserID) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	out := append([]models.HistoryEntry(nil), s.history[userID]...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

// List returns every stored score, highest final score first.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Score, error) {
	s.mu.RLock()
	out := make([]*models.Score, 0, len(s.scores))
	for _, score := range s.scores {
		cp := score
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].FinalScore.Cmp(out[j].FinalScore); c != 0 {
			return c > 0
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}

// AverageFinalScore is the mean final score over all users, zero when empty.
func (s *InMemoryStore) AverageFinalScore(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.scores) == 0 {
		return decimal.Zero, nil
	}
	sum := decimal.Zero
	for _, score := range s.scores {
		sum = sum.Add(score.FinalScore)
	}
	return sum.Div(decimal.NewFromInt(int64(len(s.scores)))).Round(2), nil
}
