// Package ratelimit bounds how often an identity may hit a route.
//
// Counting uses fixed windows: the first request for a (policy, identity)
// pair opens a window of Policy.Window and every request inside it
// increments the same counter. Requests beyond Policy.MaxRequests are
// rejected until the window expires. Rejected requests do not extend the
// window.
//
// The counter store decides the scope of the limit. RedisStore is shared by
// every API process; MemoryStore only bounds the process it lives in, so
// deployments with more than one process must use RedisStore.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy names a limit. Name is part of the counter key, so two routes
// sharing a Name share a budget.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
}

// Policies guarding the public API
var (
	ContactsList = Policy{Name: "contacts:list", MaxRequests: 10, Window: time.Minute}
	Signup       = Policy{Name: "auth:signup", MaxRequests: 5, Window: time.Minute}
	Login        = Policy{Name: "auth:login", MaxRequests: 10, Window: time.Minute}
	RequestEmail = Policy{Name: "auth:request_email", MaxRequests: 3, Window: time.Minute}
)

// Result describes the outcome of one counted request
type Result struct {
	Allowed bool
	Count   int64
	// RetryAfter is the time left in the current window
	RetryAfter time.Duration
}

// Store performs the atomic increment-and-check for one key
type Store interface {
	Increment(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Limiter applies policies on top of a Store
type Limiter struct {
	store Store
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Take counts one request for identity under policy.
// When the store fails the request is allowed and the error is returned for logging.
func (l *Limiter) Take(ctx context.Context, identity string, policy Policy) (Result, error) {
	res, err := l.store.Increment(ctx, key(policy.Name, identity), policy.MaxRequests, policy.Window)
	if err != nil {
		return Result{Allowed: true}, fmt.Errorf("rate limit %s: %w", policy.Name, err)
	}
	return res, nil
}

// Allow reports whether identity may make another request under policy
func (l *Limiter) Allow(ctx context.Context, identity string, policy Policy) (bool, error) {
	res, err := l.Take(ctx, identity, policy)
	return res.Allowed, err
}

func key(policy, identity string) string {
	return fmt.Sprintf("ratelimit:%s:%s", policy, identity)
}
