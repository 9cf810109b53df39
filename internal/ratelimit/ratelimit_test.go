package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

type memClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *memClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *memClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemoryStore() (*MemoryStore, *memClock) {
	clock := &memClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now
	return s, clock
}

var policy = Policy{Name: "test", MaxRequests: 3, Window: time.Minute}

func TestRedisStore_FixedWindow(t *testing.T) {
	store, mr := newRedisStore(t)
	limiter := NewLimiter(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user-1", policy)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "user-1", policy)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other identities have their own budget
	ok, err = limiter.Allow(ctx, "user-2", policy)
	require.NoError(t, err)
	assert.True(t, ok)

	// Rejections are not counted
	assert.Equal(t, "3", mustGet(t, mr, "ratelimit:test:user-1"))

	mr.FastForward(time.Minute)

	ok, err = limiter.Allow(ctx, "user-1", policy)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_WindowNotExtended(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", 3, time.Minute)
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)

	res, err := store.Increment(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(2), res.Count)
	assert.LessOrEqual(t, res.RetryAfter, 20*time.Second)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestRedisStore_Concurrent(t *testing.T) {
	store, _ := newRedisStore(t)
	limiter := NewLimiter(store)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Allow(ctx, "burst", Policy{Name: "burst", MaxRequests: 10, Window: time.Minute})
			if err == nil && ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
}

func TestLimiter_FailOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{})

	ok, err := limiter.Allow(context.Background(), "user-1", policy)
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_FixedWindow(t *testing.T) {
	store, clock := newMemoryStore()
	limiter := NewLimiter(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user-1", policy)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	res, err := limiter.Take(ctx, "user-1", policy)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)

	clock.Advance(59 * time.Second)
	ok, err := limiter.Allow(ctx, "user-1", policy)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Second)
	ok, err = limiter.Allow(ctx, "user-1", policy)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store, _ := newMemoryStore()
	limiter := NewLimiter(store)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow(ctx, "burst", Policy{Name: "burst", MaxRequests: 10, Window: time.Minute}); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
}

func TestMemoryStore_Sweep(t *testing.T) {
	store, clock := newMemoryStore()
	ctx := context.Background()

	_, err := store.Increment(ctx, "old", 1, time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	store.sweep(clock.Now())

	assert.Empty(t, store.windows)
}

func TestCheckEmailCooldown(t *testing.T) {
	store, mr := newRedisStore(t)
	limiter := NewLimiter(store)
	ctx := context.Background()

	onCooldown, err := limiter.CheckEmailCooldown(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, onCooldown)

	onCooldown, err = limiter.CheckEmailCooldown(ctx, " A@Example.com ")
	require.NoError(t, err)
	assert.True(t, onCooldown)

	onCooldown, err = limiter.CheckEmailCooldown(ctx, "b@example.com")
	require.NoError(t, err)
	assert.False(t, onCooldown)

	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "example.com")
	}

	mr.FastForward(2 * time.Minute)

	onCooldown, err = limiter.CheckEmailCooldown(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, onCooldown)
}

func TestMiddleware(t *testing.T) {
	store, _ := newMemoryStore()
	limiter := NewLimiter(store)

	var calls int
	handler := limiter.Middleware(Policy{Name: "mw", MaxRequests: 2, Window: time.Minute}, ByIP)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusOK)
		}),
	)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "TOO_MANY_REQUESTS")

	// A different client port is the same address
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:6666"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("connection refused")
}

func TestMiddleware_FailOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{})

	handler := limiter.Middleware(policy, ByIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_EmptyIdentitySkips(t *testing.T) {
	limiter := NewLimiter(failingStore{})

	handler := limiter.Middleware(policy, func(*http.Request) string { return "" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
