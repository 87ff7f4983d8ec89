package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
)

// Transactor runs fn as one unit of work for a user. Implementations must
// serialize concurrent calls for the same user.
type Transactor interface {
	RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error
}

// numTxShards spreads users over independent locks so unrelated
// recalculations do not contend.
const numTxShards = 128

const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory Transactor. It provides mutual exclusion only;
// in-memory stores have no rollback.
type ShardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultTxTimeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	mu := &t.shards[shardFor(userID)]
	mu.Lock()
	defer mu.Unlock()

	// The wait for the shard may have used up the budget.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func shardFor(userID id.UserID) int {
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	return int(h.Sum32() % numTxShards)
}
