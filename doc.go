// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the artvote API server.

artvote runs weekly art contests. Its job is admitting votes: each identity
gets one vote per contest, abusive traffic is rate limited before it
reaches the database, and artwork tallies stay equal to the vote rows
under concurrent load.

# Starting the Server

	IDENTITY_SALT=... DATABASE_URL=votes.db go run .

Or with PostgreSQL and Redis:

	go run . -t postgres -d "postgres://..." -redis "redis://localhost:6379/0"

A .env file in the working directory is loaded first; variables already in
the environment win.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - IDENTITY_SALT (--identity-salt): secret for address hashing

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - REDIS_URL (--redis): rate limit store; in-process when empty
  - ADDRESS_HEADERS: proxy headers, highest priority first (default: X-Forwarded-For,X-Real-IP)
  - ACCOUNT_HEADER: trusted account id header (default: X-Account-ID)
  - VOTE_QUOTA, VOTE_WINDOW: vote limit per identity and contest (default: 1 per 24h)
  - API_QUOTA, API_WINDOW: general limit per identity (default: 100 per 1m)
  - API_LIMIT_FAIL_OPEN: admit API traffic when the limiter store is down
  - ADMISSION_TIMEOUT: deadline for one vote (default: 5s)
  - LOG_LEVEL, LOG_FORMAT: slog level and text or json output

# Architecture

  - admission: the vote pipeline (validate, identify, limit, check, record)
  - identity: address selection and hashing
  - limiter: sliding-window limiter over Redis or memory
  - eligibility: contest window, artwork membership, prior vote checks
  - ledger: vote inserts, tallies and audits
  - db: connections, schema, constraint error classification
  - handlers, router, middleware: HTTP boundary
  - metrics: Prometheus counters
  - models: wire and domain types
  - cliparse: configuration parsing

Besides the server, main runs the in-memory limiter janitor and a periodic
tally audit of the active contest, all stopped together on SIGINT/SIGTERM.
*/
package main
