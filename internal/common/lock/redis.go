package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/FleetAssign/FleetAssign/internal/common/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript 只删除仍由自己持有的锁，避免误删他人续约后的锁。
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker 基于 Redis SetNX + TTL 的跨进程资源锁。
// Redis 故障经熔断器快速失败，返回错误而不是放行（放行会破坏互斥）。
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
	breaker   *middleware.CircuitBreaker
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "fleetassign:vehicle-lock:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		retry:     50 * time.Millisecond,
		breaker:   middleware.NewCircuitBreaker("redis-lock", 5, 30*time.Second),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, resourceID string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("redis locker not initialized")
	}
	key := l.keyPrefix + resourceID
	token := uuid.NewString()

	for {
		var acquired bool
		err := l.breaker.Call(ctx, func() error {
			ok, setErr := l.client.SetNX(ctx, key, token, l.ttl).Result()
			if setErr != nil {
				return setErr
			}
			acquired = ok
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", resourceID, err)
		}
		if acquired {
			break
		}

		// 锁被其他调用方持有，稍后重试
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// 删除失败时锁会随 TTL 自动过期，不阻塞调用方
		_ = l.client.Eval(releaseCtx, releaseScript, []string{key}, token).Err()
	}
	return release, nil
}
