package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTokenBucket_Allow(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(5, 1, clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, bucket.Allow(), "6th request should be denied")

	clock.Advance(time.Second)
	assert.True(t, bucket.Allow(), "request after refill should be allowed")
	assert.False(t, bucket.Allow())
}

func TestTokenBucket_FractionalRefill(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(1, 50, clock.Now)

	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	clock.Advance(10 * time.Millisecond)
	assert.False(t, bucket.Allow(), "half a token is not enough")

	clock.Advance(10 * time.Millisecond)
	assert.True(t, bucket.Allow())
}

func TestTokenBucket_AllowN(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 2, clock.Now)

	assert.True(t, bucket.AllowN(10))
	assert.False(t, bucket.AllowN(1))

	clock.Advance(time.Second)
	assert.True(t, bucket.AllowN(2))
	assert.False(t, bucket.AllowN(1))
}

func TestTokenBucket_NeverExceedsCapacity(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(3, 10, clock.Now)

	clock.Advance(time.Hour)
	assert.True(t, bucket.AllowN(3))
	assert.False(t, bucket.Allow())
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	limiter := NewRateLimiter(3, 1)
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("user1"))
	}
	assert.False(t, limiter.Allow("user1"))
	assert.True(t, limiter.Allow("user2"), "different key has its own bucket")
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter := NewRateLimiter(2, 1)
	defer limiter.Stop()

	limiter.Allow("test")
	limiter.Allow("test")
	assert.False(t, limiter.Allow("test"))

	limiter.Reset("test")
	assert.True(t, limiter.Allow("test"))
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(2, 1)
	defer limiter.Stop()
	limiter.now = clock.Now

	limiter.Allow("idle")
	limiter.AllowN("busy", 2)
	clock.Advance(time.Second)

	limiter.cleanup()

	stats := limiter.GetStats()
	assert.Equal(t, 1, stats["active_buckets"], "only the partially drained bucket survives")
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewRateLimiter(100, 10)
	defer limiter.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				limiter.Allow("concurrent")
			}
		}()
	}
	wg.Wait()

	stats := limiter.GetStats()
	assert.Equal(t, 1, stats["active_buckets"])
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	assert.NotPanics(t, func() {
		limiter.Stop()
		limiter.Stop()
	})
}

func BenchmarkTokenBucket_Allow(b *testing.B) {
	bucket := NewTokenBucket(1000000, 100000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bucket.Allow()
	}
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	limiter := NewRateLimiter(1000000, 100000)
	defer limiter.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow("test")
	}
}
