// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the artvote API.

# Route Registration

NewRouter builds the admission pipeline (identity resolver, vote and API
limiters, eligibility checker, ledger) and returns a configured
http.ServeMux:

	mux := router.NewRouter(db, cfg, store, registry)

Both limiters share the given store under different key prefixes.

# Endpoints

Health and metrics:

	GET /health   - 200 "OK" when the database answers a ping
	GET /metrics  - Prometheus exposition of the given registry

Voting (public, API rate limited):

	POST /contests/{contestID}/artworks/{artworkID}/votes

Contest reads (public, API rate limited):

	GET /contests/active               - Active contest with artwork tallies
	GET /contests/{contestID}/tallies  - Tallies of one contest
*/
package router
