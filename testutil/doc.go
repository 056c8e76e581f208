// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package testutil provides a fresh database per test plus contest and
// artwork fixtures. Tests run on in-memory SQLite unless
// ARTVOTE_TEST_DATABASE_URL points at a PostgreSQL database.
package testutil
