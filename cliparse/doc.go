// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	if err := cliparse.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

LoadEnvFile never overrides variables that are already set, so the process
environment wins over the file and CLI flags win over both.

# Environment Variables

	PORT                → -p                 (default 3318)
	DATABASE_URL        → -d                 (required)
	DATABASE_TYPE       → -t                 (sqlite or postgres, default sqlite)
	REDIS_URL           → --redis            (empty keeps limiter counters in memory)
	IDENTITY_SALT       → --identity-salt    (required)
	ADDRESS_HEADERS     → --address-headers  (default "X-Forwarded-For,X-Real-IP")
	ACCOUNT_HEADER      → --account-header   (default X-Account-ID)
	VOTE_QUOTA          → --vote-quota       (default 1)
	VOTE_WINDOW         → --vote-window      (default 24h)
	API_QUOTA           → --api-quota        (default 100)
	API_WINDOW          → --api-window       (default 1m)
	API_LIMIT_FAIL_OPEN → --api-fail-open    (default false)
	ADMISSION_TIMEOUT   → --admission-timeout (default 5s)
	LOG_LEVEL           → --log-level        (default info)
	LOG_FORMAT          → --log-format       (text or json)

Rotating IDENTITY_SALT changes every anonymous voter hash, which resets
address-based vote deduplication for the running contest.
*/
package cliparse
