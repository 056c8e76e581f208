// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/artvote/cliparse"
)

// Open connects to the configured database and verifies the connection.
func Open(dbType, url string) (*sql.DB, error) {
	driver := "postgres"
	if dbType == cliparse.DatabaseSQLite {
		driver = "sqlite"
		url = withSQLitePragmas(url)
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dbType, err)
	}

	// SQLite allows one writer; a single connection turns lock contention
	// into pool waits instead of SQLITE_BUSY errors.
	if driver == "sqlite" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dbType, err)
	}

	return conn, nil
}

func withSQLitePragmas(url string) string {
	if strings.Contains(url, "_pragma=") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// CreateSchema creates all tables and the tally trigger for the given dialect.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, dbType string) error {
	schema := postgresSchema
	if dbType == cliparse.DatabaseSQLite {
		schema = sqliteSchema
	}

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// DropSchema removes every table. Only used by tests.
func DropSchema(db *sql.DB) error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS vote;
		DROP TABLE IF EXISTS artwork;
		DROP TABLE IF EXISTS contest;
	`)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}

const postgresSchema = `
-- Contests
CREATE TABLE IF NOT EXISTS contest (
    id TEXT PRIMARY KEY,
    week_number INTEGER NOT NULL UNIQUE,
    title TEXT NOT NULL,
    opens_at TIMESTAMPTZ NOT NULL,
    closes_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL DEFAULT 'upcoming' CHECK (status IN ('upcoming', 'active', 'archived')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (closes_at > opens_at)
);

CREATE INDEX IF NOT EXISTS idx_contest_status ON contest(status);

-- Artworks
CREATE TABLE IF NOT EXISTS artwork (
    id TEXT PRIMARY KEY,
    contest_id TEXT NOT NULL REFERENCES contest(id) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    vote_count BIGINT NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
    UNIQUE (id, contest_id),
    UNIQUE (contest_id, position)
);

-- Votes
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    artwork_id TEXT NOT NULL,
    contest_id TEXT NOT NULL REFERENCES contest(id) ON DELETE CASCADE,
    account_id TEXT,
    identity_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    user_agent TEXT,
    metadata TEXT,
    FOREIGN KEY (artwork_id, contest_id) REFERENCES artwork(id, contest_id) ON DELETE CASCADE,
    UNIQUE (contest_id, account_id),
    UNIQUE (contest_id, identity_hash)
);

CREATE INDEX IF NOT EXISTS idx_vote_artwork_id ON vote(artwork_id);

-- Tally maintenance
CREATE OR REPLACE FUNCTION artwork_vote_count_bump() RETURNS TRIGGER AS $$
BEGIN
    UPDATE artwork SET vote_count = vote_count + 1 WHERE id = NEW.artwork_id;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_vote_tally ON vote;
CREATE TRIGGER trg_vote_tally AFTER INSERT ON vote
    FOR EACH ROW EXECUTE FUNCTION artwork_vote_count_bump();
`

const sqliteSchema = `
-- Contests
CREATE TABLE IF NOT EXISTS contest (
    id TEXT PRIMARY KEY,
    week_number INTEGER NOT NULL UNIQUE,
    title TEXT NOT NULL,
    opens_at TIMESTAMP NOT NULL,
    closes_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'upcoming' CHECK (status IN ('upcoming', 'active', 'archived')),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (closes_at > opens_at)
);

CREATE INDEX IF NOT EXISTS idx_contest_status ON contest(status);

-- Artworks
CREATE TABLE IF NOT EXISTS artwork (
    id TEXT PRIMARY KEY,
    contest_id TEXT NOT NULL REFERENCES contest(id) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
    UNIQUE (id, contest_id),
    UNIQUE (contest_id, position)
);

-- Votes
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    artwork_id TEXT NOT NULL,
    contest_id TEXT NOT NULL REFERENCES contest(id) ON DELETE CASCADE,
    account_id TEXT,
    identity_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    user_agent TEXT,
    metadata TEXT,
    FOREIGN KEY (artwork_id, contest_id) REFERENCES artwork(id, contest_id) ON DELETE CASCADE,
    UNIQUE (contest_id, account_id),
    UNIQUE (contest_id, identity_hash)
);

CREATE INDEX IF NOT EXISTS idx_vote_artwork_id ON vote(artwork_id);

-- Tally maintenance
CREATE TRIGGER IF NOT EXISTS trg_vote_tally AFTER INSERT ON vote
BEGIN
    UPDATE artwork SET vote_count = vote_count + 1 WHERE id = NEW.artwork_id;
END;
`
