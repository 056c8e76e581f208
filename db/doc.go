// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema creation and constraint errors.

# Connections

Open selects the driver from the configured database type:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

PostgreSQL uses github.com/lib/pq. SQLite uses modernc.org/sqlite with
foreign keys enabled and the pool capped at one connection.

# Schema Creation

	if err := db.CreateSchema(conn, cfg.DatabaseType); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times.

# Tables

  - contest: weekly contest, one row per week_number
  - artwork: entries of a contest with the denormalized vote_count
  - vote: append-only vote log

# Invariants enforced by the database

  - vote (contest_id, account_id) is unique; NULL account ids do not collide
  - vote (contest_id, identity_hash) is unique
  - vote (artwork_id, contest_id) must name an artwork of that contest
  - an AFTER INSERT trigger on vote increments artwork.vote_count in the
    inserting transaction, so the tally always equals the vote row count

# Constraint Errors

IsUniqueViolation and IsForeignKeyViolation classify driver errors by code
(*pq.Error SQLSTATE, *sqlite.Error extended result code).
*/
package db
