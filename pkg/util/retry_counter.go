package util

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const retryKeyPrefix = "retry:"

// RetryCounter 按 (handler, id) 计数投递失败次数
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// IncrementAndGet 原子递增并读取 TTL；没有过期时间的 key（首次计数或上次设置失败）补上 ttl
func (r *RetryCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	}); err != nil {
		return 0, err
	}

	count := incr.Val()
	if ttl.Val() < 0 && r.ttl > 0 {
		if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Get 未记录过返回 0
func (r *RetryCounter) Get(ctx context.Context, key string) (int64, error) {
	count, err := r.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

func (r *RetryCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

func FormatRetryKey(handler, id string) string {
	return retryKeyPrefix + handler + ":" + id
}

// ShouldRetry 可重试且第 retryCount 次失败仍在 maxRetries 以内
func ShouldRetry(retryCount, maxRetries int64, isRetryable bool) bool {
	return isRetryable && retryCount <= maxRetries
}
