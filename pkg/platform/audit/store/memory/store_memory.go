// Package memory keeps audit events in process for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	id "kyc/pkg/domain"
	audit "kyc/pkg/platform/audit"
)

// InMemoryStore appends events in arrival order and is safe for concurrent
// use.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append fills in the category from the action when the caller did not.
func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// ListByUser returns the user's events newest first. Events with equal
// timestamps keep reverse arrival order.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]audit.Event, error) {
	s.mu.RLock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID == userID {
			out = append(out, s.events[i])
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b audit.Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}
