package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold bounds how many keys accumulate before expired ones are dropped
const sweepThreshold = 10_000

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory.
// It only limits the process it lives in.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, limit int, ttl time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if len(s.windows) >= sweepThreshold {
		s.sweep(now)
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(ttl)}
		s.windows[key] = w
	}

	retryAfter := w.expiresAt.Sub(now)
	if w.count >= int64(limit) {
		return Result{Allowed: false, Count: w.count + 1, RetryAfter: retryAfter}, nil
	}

	w.count++
	return Result{Allowed: true, Count: w.count, RetryAfter: retryAfter}, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, k)
		}
	}
}
