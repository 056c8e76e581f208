// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the artvote API.

# Handler Types

  - VotingHandler: vote submission through the admission service
  - ContestHandler: read-only contest and tally views

Handlers are created with constructors:

	votingHandler := handlers.NewVotingHandler(svc, resolver)
	contestHandler := handlers.NewContestHandler(ledger)

# Voting

	POST /contests/{contestID}/artworks/{artworkID}/votes

The body is optional. It may carry free-form metadata stored with the vote:

	{"metadata": {"referrer": "gallery"}}

The response is always a VoteResponse. Its outcome maps to the status code:

	accepted          201  vote_id and tally set
	already_voted     409  code ALREADY_VOTED or DUPLICATE_VOTE
	contest_not_open  409
	rate_limited      429  Retry-After, X-RateLimit-Remaining, X-RateLimit-Reset
	not_found         404
	malformed         400
	internal_error    503  retryable
	unknown           504  the vote may have been recorded

The account id comes from the header configured as ACCOUNT_HEADER, set by
the auth proxy in front of the service.

# Contest Reads

	GET /contests/active
	GET /contests/{contestID}/tallies

Both return ContestTallies: the contest, whether voting is open right now,
artworks in display order with their vote counts, and the total.
*/
package handlers
