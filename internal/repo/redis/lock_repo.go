package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type LockRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewLockRepo(client *goredis.Client, ttl time.Duration) *LockRepo {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LockRepo{client: client, ttl: ttl}
}

// TryLock takes the named lock without waiting. The returned func releases
// it only if this holder still owns it.
func (r *LockRepo) TryLock(ctx context.Context, name string) (func(), bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	if name == "" {
		return nil, false, fmt.Errorf("lock name is required")
	}

	key := lockPrefix + name
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		// release must run even if the caller's ctx is already done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
	}, true, nil
}
