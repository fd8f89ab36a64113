// Package ratelimit throttles login and password-recovery attempts with
// fixed-window counters kept in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited = errors.New("too many attempts")
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// Scope separates the counters of different flows.
type Scope string

const (
	ScopeLogin    Scope = "login"
	ScopeRecovery Scope = "recovery"
)

// Limit is the attempt budget of one scope: at most MaxAttempts per Window.
type Limit struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces per-scope limits. A nil *Limiter allows everything, which
// is how throttling is switched off when no Redis is configured.
type Limiter struct {
	redis  redis.UniversalClient
	limits map[Scope]Limit
}

func New(client redis.UniversalClient, limits map[Scope]Limit) *Limiter {
	return &Limiter{redis: client, limits: limits}
}

// Check counts one attempt for key within scope. It returns ErrRateLimited
// once the budget of the current window is used up, and ErrUnavailable when
// Redis cannot be reached. Scopes without a configured limit are not throttled.
func (l *Limiter) Check(ctx context.Context, scope Scope, key string) error {
	if l == nil {
		return nil
	}
	limit, ok := l.limits[scope]
	if !ok || limit.MaxAttempts <= 0 {
		return nil
	}

	// EXPIRE NX runs on every hit, so a counter that lost its TTL gets one back
	// and cannot throttle forever.
	k := counterKey(scope, key)
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, limit.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if incr.Val() > int64(limit.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Exceeded reports ErrRateLimited when the budget of key is already spent in
// the current window, without counting an attempt.
func (l *Limiter) Exceeded(ctx context.Context, scope Scope, key string) error {
	if l == nil {
		return nil
	}
	limit, ok := l.limits[scope]
	if !ok || limit.MaxAttempts <= 0 {
		return nil
	}

	count, err := l.redis.Get(ctx, counterKey(scope, key)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count >= int64(limit.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter of key, typically after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, scope Scope, key string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, counterKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RetryAfter reports how long until the window of key ends. Zero means the
// counter is not set.
func (l *Limiter) RetryAfter(ctx context.Context, scope Scope, key string) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}
	ttl, err := l.redis.TTL(ctx, counterKey(scope, key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func counterKey(scope Scope, key string) string {
	return "consejo:rl:" + string(scope) + ":" + key
}
