package tx

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "personsync/pkg/domain-errors"
)

const numShards = 32

// ShardedRunner serializes units of work that share a shard key. It backs the
// in-memory stores, which have no rollback: fn must validate before writing.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedRunner(timeout time.Duration) *ShardedRunner {
	return &ShardedRunner{timeout: timeout}
}

type shardKey struct{}

// WithShardKey selects the lock a ShardedRunner takes, usually the aggregate id.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKey{}, key)
}

type heldKey struct{}

func (r *ShardedRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, ok := ctx.Value(heldKey{}).(*ShardedRunner); ok && held == r {
		return fn(ctx)
	}

	ctx, cancel, err := withDeadline(ctx, r.timeout)
	defer cancel()
	if err != nil {
		return err
	}

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(context.WithValue(ctx, heldKey{}, r))
}

func (r *ShardedRunner) selectShard(ctx context.Context) int {
	key, ok := ctx.Value(shardKey{}).(string)
	if !ok || key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}
