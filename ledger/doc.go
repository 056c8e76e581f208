// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger is the append-only vote store.

RecordVote inserts one vote row and reads the artwork's tally back inside
the same transaction. The database does the rest:

  - UNIQUE (contest_id, account_id) and UNIQUE (contest_id, identity_hash)
    reject a second vote from the same voter. The driver error becomes
    ErrDuplicateVote and the transaction rolls back.
  - The vote (artwork_id, contest_id) pair references artwork (id, contest_id),
    so a vote for another contest's artwork fails with
    eligibility.ErrArtworkMismatch.
  - An AFTER INSERT trigger bumps artwork.vote_count, so the tally always
    equals the number of vote rows.

If the context ends after the insert was sent, the error wraps
ErrOutcomeUnknown: the vote may have been committed.

The read side (Contest, Artwork, HasVoted) satisfies eligibility.Store.
Tallies lists a contest's artworks and AuditTallies reports any artwork
whose stored tally disagrees with its vote rows.
*/
package ledger
