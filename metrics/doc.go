// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes Prometheus counters for vote outcomes and rate
// limiter decisions. Collectors are registered on a caller-supplied
// registry so tests can use a fresh one.
package metrics
