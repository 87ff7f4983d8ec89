package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc/internal/receipt/models"
	"kyc/internal/scoring"
	"kyc/internal/scoring/scoringtest"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
)

func newReceipt(userID id.UserID, uploadedAt time.Time) *models.Receipt {
	return models.NewReceipt(userID, models.Upload{FileName: "r.jpg", Data: []byte("img")}, uploadedAt)
}

func TestInMemoryStoreOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	owner, other := id.NewUserID(), id.NewUserID()
	r := newReceipt(owner, scoringtest.Base)
	require.NoError(t, s.Create(ctx, r))

	assert.ErrorIs(t, s.Create(ctx, r), sentinel.ErrConflict)

	_, err := s.FindByIDForUser(ctx, other, r.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, other, r.ID), sentinel.ErrNotFound)

	hijack := *r
	hijack.UserID = other
	assert.ErrorIs(t, s.Update(ctx, &hijack), sentinel.ErrNotFound)

	got, err := s.FindByIDForUser(ctx, owner, r.ID)
	require.NoError(t, err)
	got.FileName = "mutated.jpg"
	again, err := s.FindByIDForUser(ctx, owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "r.jpg", again.FileName, "returned receipts are copies")

	require.NoError(t, s.Delete(ctx, owner, r.ID))
	_, err = s.FindByIDForUser(ctx, owner, r.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStoreListByUser(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	userID := id.NewUserID()
	for day := 0; day < 5; day++ {
		r := newReceipt(userID, scoringtest.Base.AddDate(0, 0, day))
		if day%2 == 0 {
			r.Complete(models.Extraction{TotalAmount: scoringtest.Null("10")}, r.UploadedAt)
		}
		require.NoError(t, s.Create(ctx, r))
	}
	require.NoError(t, s.Create(ctx, newReceipt(id.NewUserID(), scoringtest.Base)))

	all, err := s.ListByUser(ctx, userID, models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].UploadedAt.After(all[i].UploadedAt), "newest first")
	}

	completed := scoring.ReceiptCompleted
	filtered, err := s.ListByUser(ctx, userID, models.ListFilter{Status: &completed})
	require.NoError(t, err)
	assert.Len(t, filtered, 3)

	page, err := s.ListByUser(ctx, userID, models.ListFilter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)

	beyond, err := s.ListByUser(ctx, userID, models.ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestInMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	userID := id.NewUserID()

	done := newReceipt(userID, scoringtest.Base)
	done.Complete(models.Extraction{TotalAmount: scoringtest.Null("1200.50")}, scoringtest.Base)
	failed := newReceipt(userID, scoringtest.Base)
	failed.Fail("unreadable", scoringtest.Base)
	pending := newReceipt(userID, scoringtest.Base)
	elsewhere := newReceipt(id.NewUserID(), scoringtest.Base)
	elsewhere.Complete(models.Extraction{TotalAmount: scoringtest.Null("99.50")}, scoringtest.Base)
	for _, r := range []*models.Receipt{done, failed, pending, elsewhere} {
		require.NoError(t, s.Create(ctx, r))
	}

	stats, err := s.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Pending)
	assert.True(t, stats.CompletedAmount.Equal(scoringtest.Dec("1200.50")))

	platform, err := s.PlatformStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, platform.Total)
	assert.Equal(t, 2, platform.Completed)
	assert.True(t, platform.TotalSpending.Equal(scoringtest.Dec("1300")))

	snapshots, err := s.ListForScoring(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, snapshots, 3)
}
