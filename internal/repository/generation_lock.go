package repository

import (
	"context"
	"time"

	"leave_assessment_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

// GenerationLock 跨实例串行化同一请假的出题
type GenerationLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// releaseScript 仅当 key 仍是自己的 token 时删除
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisGenerationLock struct {
	Redis *redis.Client
}

func NewRedisGenerationLock(rdb *redis.Client) *RedisGenerationLock {
	return &RedisGenerationLock{Redis: rdb}
}

func GenerationLockKey(leaveID string) string {
	return "leave:assessment:generate:" + leaveID
}

func (l *RedisGenerationLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := model.GenerateUUID()
	ok, err := l.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisGenerationLock) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.Redis, []string{key}, token).Err()
}
