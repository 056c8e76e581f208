// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) Admit(context.Context, string, time.Time, int, time.Duration) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

// stores runs fn once per backing store.
func stores(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("redis", func(t *testing.T) { fn(t, newRedisStore(t)) })
}

func TestVoteQuotaOnePerDay(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		clock := newFakeClock()
		l := New("vote", store, 1, 24*time.Hour, WithClock(clock.Now))
		start := clock.Now()

		d, err := l.Allow(ctx, "addr:abc:contest-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
		assert.True(t, d.ResetAt.Equal(start.Add(24*time.Hour)), "reset at %s", d.ResetAt)

		clock.Advance(23 * time.Hour)
		d, err = l.Allow(ctx, "addr:abc:contest-1")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, 0, d.Remaining)
		assert.True(t, d.ResetAt.Equal(start.Add(24*time.Hour)), "reset must follow the first admitted event, got %s", d.ResetAt)

		// Other contests and identities have their own windows
		d, err = l.Allow(ctx, "addr:abc:contest-2")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		d, err = l.Allow(ctx, "addr:def:contest-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		clock.Advance(time.Hour)
		d, err = l.Allow(ctx, "addr:abc:contest-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "event admitted exactly one window ago has expired")
	})
}

func TestAPIQuotaHundredPerMinute(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		clock := newFakeClock()
		l := New("api", store, 100, time.Minute, WithClock(clock.Now))

		for i := 0; i < 100; i++ {
			d, err := l.Allow(ctx, "addr:z")
			require.NoError(t, err)
			require.True(t, d.Allowed, "call %d should be admitted", i+1)
			assert.Equal(t, 99-i, d.Remaining)
			clock.Advance(100 * time.Millisecond)
		}

		d, err := l.Allow(ctx, "addr:z")
		require.NoError(t, err)
		assert.False(t, d.Allowed, "101st call within a minute must be rejected")
		assert.Equal(t, 0, d.Remaining)
		assert.True(t, d.ResetAt.After(clock.Now()))
	})
}

func TestSlidingNotFixedBucket(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		clock := newFakeClock()
		l := New("api", store, 2, time.Minute, WithClock(clock.Now))

		// t=0 and t=40s admitted
		d, _ := l.Allow(ctx, "k")
		require.True(t, d.Allowed)
		clock.Advance(40 * time.Second)
		d, _ = l.Allow(ctx, "k")
		require.True(t, d.Allowed)

		// t=50s: full
		clock.Advance(10 * time.Second)
		d, _ = l.Allow(ctx, "k")
		assert.False(t, d.Allowed)

		// t=61s: the first event left the window, the second has not
		clock.Advance(11 * time.Second)
		d, _ = l.Allow(ctx, "k")
		assert.True(t, d.Allowed)
		d, _ = l.Allow(ctx, "k")
		assert.False(t, d.Allowed, "a fixed bucket would have reset both slots at t=60s")
	})
}

func TestDeniedAttemptsDoNotExtendWindow(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		clock := newFakeClock()
		l := New("vote", store, 1, time.Hour, WithClock(clock.Now))

		d, _ := l.Allow(ctx, "k")
		require.True(t, d.Allowed)
		for i := 0; i < 5; i++ {
			clock.Advance(10 * time.Minute)
			d, _ = l.Allow(ctx, "k")
			require.False(t, d.Allowed)
		}
		clock.Advance(10 * time.Minute)
		d, _ = l.Allow(ctx, "k")
		assert.True(t, d.Allowed)
	})
}

func TestConcurrentAllowAdmitsExactlyQuota(t *testing.T) {
	stores(t, func(t *testing.T, store Store) {
		l := New("vote", store, 1, 24*time.Hour)

		var admitted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := l.Allow(context.Background(), "addr:race:contest")
				if err == nil && d.Allowed {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), admitted.Load())
	})
}

func TestFailurePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("fail closed denies", func(t *testing.T) {
		l := New("vote", failingStore{}, 1, time.Hour)
		d, err := l.Allow(ctx, "k")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnavailable))
		assert.False(t, d.Allowed)
	})

	t.Run("fail open admits but flags", func(t *testing.T) {
		l := New("api", failingStore{}, 1, time.Hour, WithPolicy(FailOpen))
		d, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Degraded)
	})

	t.Run("redis down fails closed", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()
		mr.Close()

		l := New("vote", NewRedisStore(client), 1, time.Hour)
		d, err := l.Allow(ctx, "k")
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.False(t, d.Allowed)
	})
}

// blockingStore waits for the caller's context to end.
type blockingStore struct{}

func (blockingStore) Admit(ctx context.Context, _ string, _ time.Time, _ int, _ time.Duration) (Decision, error) {
	<-ctx.Done()
	return Decision{}, fmt.Errorf("redis: %w", ctx.Err())
}

func TestExpiredContextIsNotUnavailable(t *testing.T) {
	t.Run("expired before admit", func(t *testing.T) {
		store := NewMemoryStore()
		l := New("vote", store, 1, time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		_, err := l.Allow(ctx, "k")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, errors.Is(err, ErrUnavailable))
		assert.Equal(t, 0, store.Len(), "no quota charged")
	})

	t.Run("expired during admit", func(t *testing.T) {
		for _, policy := range []FailurePolicy{FailClosed, FailOpen} {
			l := New("vote", blockingStore{}, 1, time.Hour, WithPolicy(policy))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			d, err := l.Allow(ctx, "k")
			cancel()

			assert.ErrorIs(t, err, context.DeadlineExceeded, policy.String())
			assert.False(t, errors.Is(err, ErrUnavailable), policy.String())
			assert.False(t, d.Allowed, policy.String())
		}
	})
}

func TestLimitersShareStoreWithoutCollisions(t *testing.T) {
	store := NewMemoryStore()
	vote := New("vote", store, 1, time.Hour)
	api := New("api", store, 1, time.Hour)

	d, err := vote.Allow(context.Background(), "addr:x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = api.Allow(context.Background(), "addr:x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	clock := newFakeClock()
	l := New("api", store, 5, time.Minute, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		_, err := l.Allow(context.Background(), fmt.Sprintf("k%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.Len())

	assert.Equal(t, 0, store.Sweep(clock.Now().Add(30*time.Second)))
	assert.Equal(t, 3, store.Sweep(clock.Now().Add(time.Minute)))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreJanitor(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Admit(context.Background(), "k", time.Now().Add(-time.Hour), 1, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.RunJanitor(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
