// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/artvote/db"
	"github.com/danielhkuo/artvote/eligibility"
	"github.com/danielhkuo/artvote/identity"
	"github.com/danielhkuo/artvote/models"
)

var (
	// ErrDuplicateVote means a vote for the same account or address hash
	// already exists in the contest. The tally was not touched.
	ErrDuplicateVote = errors.New("duplicate vote")

	// ErrOutcomeUnknown means the context ended after the insert was sent,
	// so the vote may or may not have been committed.
	ErrOutcomeUnknown = errors.New("vote outcome unknown")
)

// Metadata is stored with each vote for abuse forensics.
type Metadata struct {
	UserAgent string
	Extra     map[string]string
}

// Receipt is returned for a recorded vote.
type Receipt struct {
	VoteID    string
	Tally     int64 // artwork vote_count read inside the inserting transaction
	CreatedAt time.Time
}

// Ledger is the append-only vote store.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func New(conn *sql.DB) *Ledger {
	return &Ledger{db: conn, now: time.Now}
}

// RecordVote inserts a vote and returns the artwork's new tally.
//
// Uniqueness is enforced by the vote table's constraints and the tally by
// its insert trigger, both inside one transaction: of any number of
// concurrent calls for the same identity and contest exactly one commits,
// the rest get ErrDuplicateVote.
func (l *Ledger) RecordVote(ctx context.Context, artworkID, contestID string, id identity.Identity, meta Metadata) (Receipt, error) {
	voteID := uuid.NewString()
	createdAt := l.now().UTC()

	var accountID sql.NullString
	if id.HasAccount() {
		accountID = sql.NullString{String: id.AccountID, Valid: true}
	}

	var extra sql.NullString
	if len(meta.Extra) > 0 {
		b, err := json.Marshal(meta.Extra)
		if err != nil {
			return Receipt{}, fmt.Errorf("failed to encode vote metadata: %w", err)
		}
		extra = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vote (id, artwork_id, contest_id, account_id, identity_hash, created_at, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, voteID, artworkID, contestID, accountID, id.AddressHash, createdAt, meta.UserAgent, extra)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return Receipt{}, ErrDuplicateVote
		case db.IsForeignKeyViolation(err):
			return Receipt{}, eligibility.ErrArtworkMismatch
		}
		return Receipt{}, l.writeError(ctx, "failed to insert vote", err)
	}

	// Read-after-write: includes the trigger's increment for this vote.
	var tally int64
	err = tx.QueryRowContext(ctx, `
		SELECT vote_count FROM artwork WHERE id = $1
	`, artworkID).Scan(&tally)
	if err != nil {
		return Receipt{}, l.writeError(ctx, "failed to read tally", err)
	}

	if err := tx.Commit(); err != nil {
		return Receipt{}, l.writeError(ctx, "failed to commit vote", err)
	}

	return Receipt{VoteID: voteID, Tally: tally, CreatedAt: createdAt}, nil
}

func (l *Ledger) writeError(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %v", msg, ErrOutcomeUnknown, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Contest returns a contest or eligibility.ErrContestNotFound.
func (l *Ledger) Contest(ctx context.Context, contestID string) (models.Contest, error) {
	var c models.Contest
	err := l.db.QueryRowContext(ctx, `
		SELECT id, week_number, title, opens_at, closes_at, status
		FROM contest
		WHERE id = $1
	`, contestID).Scan(&c.ID, &c.WeekNumber, &c.Title, &c.OpensAt, &c.ClosesAt, &c.Status)
	if err == sql.ErrNoRows {
		return models.Contest{}, eligibility.ErrContestNotFound
	}
	if err != nil {
		return models.Contest{}, fmt.Errorf("failed to query contest: %w", err)
	}
	return c, nil
}

// ActiveContest returns the contest flagged active with the highest week
// number, or eligibility.ErrContestNotFound.
func (l *Ledger) ActiveContest(ctx context.Context) (models.Contest, error) {
	var c models.Contest
	err := l.db.QueryRowContext(ctx, `
		SELECT id, week_number, title, opens_at, closes_at, status
		FROM contest
		WHERE status = $1
		ORDER BY week_number DESC
		LIMIT 1
	`, models.StatusActive).Scan(&c.ID, &c.WeekNumber, &c.Title, &c.OpensAt, &c.ClosesAt, &c.Status)
	if err == sql.ErrNoRows {
		return models.Contest{}, eligibility.ErrContestNotFound
	}
	if err != nil {
		return models.Contest{}, fmt.Errorf("failed to query active contest: %w", err)
	}
	return c, nil
}

// Artwork returns an artwork or eligibility.ErrArtworkNotFound.
func (l *Ledger) Artwork(ctx context.Context, artworkID string) (models.Artwork, error) {
	var a models.Artwork
	err := l.db.QueryRowContext(ctx, `
		SELECT id, contest_id, title, position, vote_count
		FROM artwork
		WHERE id = $1
	`, artworkID).Scan(&a.ID, &a.ContestID, &a.Title, &a.Position, &a.VoteCount)
	if err == sql.ErrNoRows {
		return models.Artwork{}, eligibility.ErrArtworkNotFound
	}
	if err != nil {
		return models.Artwork{}, fmt.Errorf("failed to query artwork: %w", err)
	}
	return a, nil
}

// HasVoted reports whether the account (if any) or the address hash
// already has a vote in the contest.
func (l *Ledger) HasVoted(ctx context.Context, contestID string, id identity.Identity) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM vote
			WHERE contest_id = $1
			  AND (identity_hash = $2 OR ($3 <> '' AND account_id = $3))
		)
	`, contestID, id.AddressHash, id.AccountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query votes: %w", err)
	}
	return exists, nil
}

// Tallies returns the artworks of a contest ordered by display position.
func (l *Ledger) Tallies(ctx context.Context, contestID string) ([]models.Artwork, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, contest_id, title, position, vote_count
		FROM artwork
		WHERE contest_id = $1
		ORDER BY position
	`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artworks: %w", err)
	}
	defer rows.Close()

	artworks := []models.Artwork{}
	for rows.Next() {
		var a models.Artwork
		if err := rows.Scan(&a.ID, &a.ContestID, &a.Title, &a.Position, &a.VoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan artwork: %w", err)
		}
		artworks = append(artworks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read artworks: %w", err)
	}
	return artworks, nil
}

// Drift is an artwork whose stored tally disagrees with its vote rows.
type Drift struct {
	ArtworkID string
	Tally     int64
	Votes     int64
}

// AuditTallies compares every artwork tally in the contest with the count
// of its vote rows. An empty result means the contest is consistent.
func (l *Ledger) AuditTallies(ctx context.Context, contestID string) ([]Drift, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT a.id, a.vote_count, COUNT(v.id)
		FROM artwork a
		LEFT JOIN vote v ON v.artwork_id = a.id
		WHERE a.contest_id = $1
		GROUP BY a.id, a.vote_count
		HAVING a.vote_count <> COUNT(v.id)
	`, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to audit tallies: %w", err)
	}
	defer rows.Close()

	var drifts []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.ArtworkID, &d.Tally, &d.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan tally audit: %w", err)
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}
