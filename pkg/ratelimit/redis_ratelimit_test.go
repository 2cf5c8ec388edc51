package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisRateLimiter 테스트용 Redis Rate Limiter 설정
// 주의: 실제 Redis 서버가 필요합니다 (localhost:6379)
func setupRedisRateLimiter(t *testing.T) *RedisRateLimiter {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisRateLimiter(client, RedisRateLimiterConfig{
		KeyPrefix:    "test:ratelimit:",
		DefaultLimit: 5,
		DefaultTTL:   time.Minute,
	})

	if err := limiter.Ping(context.Background()); err != nil {
		t.Skipf("Redis server not available: %v", err)
	}

	return limiter
}

func cleanupRedis(limiter *RedisRateLimiter, keys ...string) {
	ctx := context.Background()
	for _, key := range keys {
		limiter.Reset(ctx, key)
	}
}

func TestRedisRateLimiter_TokenBucket(t *testing.T) {
	limiter := setupRedisRateLimiter(t)

	ctx := context.Background()
	key := "execute:ip:10.0.0.1"
	cleanupRedis(limiter, key)
	defer cleanupRedis(limiter, key)

	limit := 3
	window := time.Minute

	t.Run("제한 내 요청은 모두 허용", func(t *testing.T) {
		for i := 0; i < limit; i++ {
			allowed, err := limiter.Allow(ctx, key, limit, window)
			require.NoError(t, err)
			assert.True(t, allowed, "Request %d should be allowed", i+1)
		}
	})

	t.Run("제한 초과 요청은 거부", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
}

func TestRedisRateLimiter_AllowWithInfo(t *testing.T) {
	limiter := setupRedisRateLimiter(t)

	ctx := context.Background()
	key := "execute:user:info"
	cleanupRedis(limiter, key)
	defer cleanupRedis(limiter, key)

	limit := 5
	window := time.Minute

	allowed, info, err := limiter.AllowWithInfo(ctx, key, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NotNil(t, info)
	assert.Equal(t, limit, info.Limit)
	assert.Equal(t, limit-1, info.Remaining)
	assert.True(t, info.ResetTime.After(time.Now().Add(-time.Second)))

	limiter.Allow(ctx, key, limit, window)
	limiter.Allow(ctx, key, limit, window)

	_, info, err = limiter.AllowWithInfo(ctx, key, limit, window)
	require.NoError(t, err)
	assert.Equal(t, limit-4, info.Remaining)
}

func TestRedisRateLimiter_TokenRefill(t *testing.T) {
	limiter := setupRedisRateLimiter(t)

	ctx := context.Background()
	key := "execute:user:refill"
	cleanupRedis(limiter, key)
	defer cleanupRedis(limiter, key)

	limit := 2
	window := 400 * time.Millisecond

	allowed1, _ := limiter.Allow(ctx, key, limit, window)
	allowed2, _ := limiter.Allow(ctx, key, limit, window)
	allowed3, _ := limiter.Allow(ctx, key, limit, window)
	assert.True(t, allowed1)
	assert.True(t, allowed2)
	assert.False(t, allowed3, "Should be denied when tokens exhausted")

	// one token every 200ms
	time.Sleep(250 * time.Millisecond)

	allowed4, _ := limiter.Allow(ctx, key, limit, window)
	assert.True(t, allowed4, "Should be allowed after token refill")
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	limiter := setupRedisRateLimiter(t)

	ctx := context.Background()
	key := "execute:user:reset"

	limiter.Allow(ctx, key, 2, time.Minute)
	limiter.Allow(ctx, key, 2, time.Minute)
	allowed, _ := limiter.Allow(ctx, key, 2, time.Minute)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, key))

	allowed, _ = limiter.Allow(ctx, key, 2, time.Minute)
	assert.True(t, allowed)
	cleanupRedis(limiter, key)
}

func TestRedisRateLimiter_ConcurrentRequests(t *testing.T) {
	limiter := setupRedisRateLimiter(t)

	ctx := context.Background()
	key := "execute:user:concurrent"
	cleanupRedis(limiter, key)
	defer cleanupRedis(limiter, key)

	limit := 10
	concurrency := 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Allow(ctx, key, limit, time.Hour)
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed, "Only %d requests should be allowed", limit)
}

func TestRedisRateLimiter_InvalidRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "invalid:9999"})
	defer client.Close()

	limiter := NewRedisRateLimiter(client, RedisRateLimiterConfig{KeyPrefix: "test:"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, limiter.Ping(ctx))

	_, err := limiter.Allow(ctx, "k", 1, time.Minute)
	assert.Error(t, err)
}
