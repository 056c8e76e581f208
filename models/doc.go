// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

  - SubmitVoteRequest: optional metadata (free-form strings kept for abuse forensics)

# Response Types

  - VoteResponse: outcome, code, message, and on acceptance vote_id and tally;
    rate limit rejections add remaining_quota, reset_at and retry_after
  - ContestTallies: contest with its artworks and vote counts
  - RateLimitResponse: general API quota rejection
  - ErrorResponse: error, message

# Domain Types

  - Contest: weekly contest and its voting window
  - Artwork: contest entry with its denormalized vote_count
  - Vote: an immutable cast vote

# Outcomes

Every vote submission resolves to one outcome:

	accepted, already_voted, rate_limited, contest_not_open,
	not_found, malformed, internal_error, unknown

already_voted is reported with code ALREADY_VOTED when the advisory check
caught it and DUPLICATE_VOTE when the database constraint did.
*/
package models
