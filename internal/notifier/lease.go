package notifier

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const leaseKey = "ledger:notifier:lease"

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another replica is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLease is a SET NX PX lock keeping one dispatcher draining at a time
// across replicas.
type RedisLease struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

func NewRedisLease(rdb *redis.Client, ttl time.Duration) *RedisLease {
	return &RedisLease{rdb: rdb, key: leaseKey, token: uuid.NewString(), ttl: ttl}
}

// Acquire takes the lease, or extends it when this instance already holds it.
func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	holder, err := l.rdb.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if holder != l.token {
		return false, nil
	}
	return true, l.rdb.PExpire(ctx, l.key, l.ttl).Err()
}

func (l *RedisLease) Release(ctx context.Context) error {
	return l.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
}
