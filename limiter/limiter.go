// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnavailable is returned when the backing store cannot be reached and
// the limiter fails closed.
var ErrUnavailable = errors.New("rate limiter unavailable")

// Decision is the result of one admission attempt.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest admitted event in the window expires and
	// one more slot frees up.
	ResetAt time.Time
	// Degraded is set when the store failed and a FailOpen limiter admitted anyway.
	Degraded bool
}

// Store keeps sliding-window logs. Admit must be atomic per key: record
// an event at now only if fewer than limit events were admitted during
// (now-window, now].
type Store interface {
	Admit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Decision, error)
}

// FailurePolicy decides what happens when the store errors.
type FailurePolicy int

const (
	FailClosed FailurePolicy = iota
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

// Limiter applies a fixed quota over a rolling window.
type Limiter struct {
	name   string
	store  Store
	limit  int
	window time.Duration
	policy FailurePolicy
	now    func() time.Time
}

type Option func(*Limiter)

func WithPolicy(p FailurePolicy) Option {
	return func(l *Limiter) { l.policy = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter. name prefixes every key so several limiters can
// share one store.
func New(name string, store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		name:   name,
		store:  store,
		limit:  limit,
		window: window,
		policy: FailClosed,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Name() string { return l.name }

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// Allow records one event for key if the quota permits.
//
// On store failure a FailClosed limiter returns a denying decision and an
// error wrapping ErrUnavailable; a FailOpen limiter returns an admitting,
// Degraded decision and a nil error. If ctx ends first, its error is
// returned and no policy applies.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	now := l.now()
	d, err := l.store.Admit(ctx, l.name+":"+key, now, l.limit, l.window)
	if err == nil {
		return d, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Decision{}, fmt.Errorf("%s: %w", l.name, ctxErr)
	}

	if l.policy == FailOpen {
		slog.Warn("rate limiter store failed, admitting request",
			"limiter", l.name, "policy", l.policy.String(), "error", err)
		return Decision{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: 0,
			ResetAt:   now.Add(l.window),
			Degraded:  true,
		}, nil
	}

	slog.Error("rate limiter store failed, denying request",
		"limiter", l.name, "policy", l.policy.String(), "error", err)
	return Decision{
		Allowed:   false,
		Limit:     l.limit,
		Remaining: 0,
		ResetAt:   now.Add(l.window),
	}, fmt.Errorf("%w: %s: %v", ErrUnavailable, l.name, err)
}
