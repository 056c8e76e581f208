// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package limiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps sliding-window logs in process memory. It is only
// correct for a single server process.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string]*eventLog
}

type eventLog struct {
	events    []time.Time // admitted events, oldest first
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: make(map[string]*eventLog),
	}
}

func (s *MemoryStore) Admit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.logs[key]
	if !ok {
		log = &eventLog{}
		s.logs[key] = log
	}

	// Drop events that left the window. An event admitted exactly one
	// window ago has expired.
	cutoff := now.Add(-window)
	i := 0
	for i < len(log.events) && !log.events[i].After(cutoff) {
		i++
	}
	log.events = log.events[i:]

	d := Decision{Limit: limit}
	if len(log.events) < limit {
		log.events = append(log.events, now)
		log.expiresAt = now.Add(window)
		d.Allowed = true
	}
	d.Remaining = limit - len(log.events)
	if len(log.events) > 0 {
		d.ResetAt = log.events[0].Add(window)
	} else {
		d.ResetAt = now.Add(window)
	}
	return d, nil
}

// Sweep removes logs whose events have all expired and returns how many
// keys were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, log := range s.logs {
		if !now.Before(log.expiresAt) {
			delete(s.logs, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

// RunJanitor sweeps expired logs every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				slog.Debug("swept expired rate limit keys", "removed", n, "remaining", s.Len())
			}
		}
	}
}
