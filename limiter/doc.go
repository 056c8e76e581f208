// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package limiter implements sliding-window rate limiting.

A Limiter admits at most Limit events per key during any rolling Window.
Only admitted events are logged, and each expires exactly one window after
it was admitted, so a rejected attempt never pushes the reset time back.
Decision.ResetAt is when the oldest logged event expires.

# Stores

	RedisStore   - sorted set per key, updated by one Lua script (atomic across processes)
	MemoryStore  - mutex-guarded map for single-process deployments and tests

Several limiters may share a store; each prefixes its keys with its name.

	store := limiter.NewRedisStore(client)
	votes := limiter.New("vote", store, 1, 24*time.Hour)
	api := limiter.New("api", store, 100, time.Minute, limiter.WithPolicy(limiter.FailOpen))

# Failure Policy

When the store errors, a FailClosed limiter (the default) denies and
returns an error wrapping ErrUnavailable. A FailOpen limiter admits,
marks the decision Degraded and logs a warning. The check is never
skipped silently.
*/
package limiter
