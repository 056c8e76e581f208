// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package admission decides whether a vote request is accepted.

SubmitVote runs one request through a fixed pipeline and stops at the first
rejection:

 1. Structural validation. Contest and artwork identifiers must be UUIDs.
    Nothing else happens for malformed input.
 2. Identity resolution (package identity).
 3. Vote quota (package limiter), keyed per identity and contest. The
    limiter runs before any database read so abusive traffic never reaches
    the ledger. A limiter outage denies the request.
 4. Eligibility (package eligibility). These reads are advisory.
 5. Ledger write (package ledger). The vote table's unique constraints pick
    a single winner among concurrent requests; losers get DUPLICATE_VOTE.

A request rejected by eligibility has already consumed quota. That keeps
clients from probing contest state for free.

# Outcomes

Every result is an Outcome whose Kind is one of:

	accepted          vote recorded, Tally holds the artwork's new count
	already_voted     ALREADY_VOTED (pre-check) or DUPLICATE_VOTE (lost race)
	rate_limited      Remaining, ResetAt and RetryAfter are set
	contest_not_open  contest upcoming, archived or past its close time
	not_found         unknown contest or artwork, or artwork of another contest
	malformed         identifiers failed to parse
	internal_error    limiter or storage unavailable, safe to retry
	unknown           deadline hit after the write was issued; do not retry blindly

No rejection is retried internally.
*/
package admission
