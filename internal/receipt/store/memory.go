package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"kyc/internal/receipt/models"
	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
)

// InMemoryStore keeps receipts in process memory for development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts map[id.ReceiptID]*models.Receipt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{receipts: make(map[id.ReceiptID]*models.Receipt)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.receipts[r.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *r
	s.receipts[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, r *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.receipts[r.ID]
	if !ok || existing.UserID != r.UserID {
		return sentinel.ErrNotFound
	}
	cp := *r
	s.receipts[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByIDForUser(_ context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[receiptID]
	if !ok || r.UserID != userID {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Receipt, error) {
	s.mu.RLock()
	var out []*models.Receipt
	for _, r := range s.receipts {
		if r.UserID != userID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})

	if filter.Offset >= len(out) {
		return []*models.Receipt{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListForScoring(_ context.Context, userID id.UserID) ([]scoring.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scoring.Receipt
	for _, r := range s.receipts {
		if r.UserID == userID {
			out = append(out, r.Snapshot())
		}
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID id.UserID, receiptID id.ReceiptID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[receiptID]
	if !ok || r.UserID != userID {
		return sentinel.ErrNotFound
	}
	delete(s.receipts, receiptID)
	return nil
}

func (s *InMemoryStore) Stats(_ context.Context, userID id.UserID) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.Stats{CompletedAmount: decimal.Zero}
	for _, r := range s.receipts {
		if r.UserID != userID {
			continue
		}
		stats.Total++
		switch r.Status {
		case scoring.ReceiptCompleted:
			stats.Completed++
			if r.TotalAmount.Valid {
				stats.CompletedAmount = stats.CompletedAmount.Add(r.TotalAmount.Decimal)
			}
		case scoring.ReceiptPending:
			stats.Pending++
		case scoring.ReceiptProcessing:
			stats.Processing++
		case scoring.ReceiptFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) PlatformStats(_ context.Context) (models.PlatformStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.PlatformStats{TotalSpending: decimal.Zero}
	for _, r := range s.receipts {
		stats.Total++
		switch r.Status {
		case scoring.ReceiptCompleted:
			stats.Completed++
			if r.TotalAmount.Valid {
				stats.TotalSpending = stats.TotalSpending.Add(r.TotalAmount.Decimal)
			}
		case scoring.ReceiptFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
