package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
)

func TestShardedTx(t *testing.T) {
	t.Run("serializes work for one user", func(t *testing.T) {
		tx := NewShardedTx()
		userID := id.NewUserID()

		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				_ = tx.RunInTx(context.Background(), userID, func(context.Context) error {
					n := inside.Add(1)
					if n > maxInside.Load() {
						maxInside.Store(n)
					}
					time.Sleep(time.Millisecond)
					inside.Add(-1)
					return nil
				})
			})
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})

	t.Run("cancelled context is a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := NewShardedTx().RunInTx(ctx, id.NewUserID(), func(context.Context) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.False(t, called)
	})

	t.Run("fn gets a deadline", func(t *testing.T) {
		var hasDeadline bool
		require.NoError(t, NewShardedTx().RunInTx(context.Background(), id.NewUserID(), func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		}))
		assert.True(t, hasDeadline)
	})
}
