// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package eligibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/artvote/identity"
	"github.com/danielhkuo/artvote/models"
)

var (
	ErrContestNotFound = errors.New("contest not found")
	ErrContestNotOpen  = errors.New("contest is not open for voting")
	ErrArtworkNotFound = errors.New("artwork not found")
	ErrArtworkMismatch = errors.New("artwork does not belong to contest")
	ErrAlreadyVoted    = errors.New("already voted in this contest")
)

// Store is the read side of the vote ledger. Lookups of missing rows
// return ErrContestNotFound / ErrArtworkNotFound.
type Store interface {
	Contest(ctx context.Context, contestID string) (models.Contest, error)
	Artwork(ctx context.Context, artworkID string) (models.Artwork, error)
	HasVoted(ctx context.Context, contestID string, id identity.Identity) (bool, error)
}

// Checker runs the advisory pre-write checks of a vote. Its reads race
// with concurrent writers; the ledger's unique constraints are what make
// duplicates impossible.
type Checker struct {
	store Store
	now   func() time.Time
}

func NewChecker(store Store) *Checker {
	return &Checker{store: store, now: time.Now}
}

// WithClock replaces time.Now, for tests.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// CheckEligibility returns nil when id may vote for artworkID in contestID.
// Policy rejections are the package's sentinel errors; anything else is a
// storage failure.
func (c *Checker) CheckEligibility(ctx context.Context, contestID, artworkID string, id identity.Identity) error {
	contest, err := c.store.Contest(ctx, contestID)
	if err != nil {
		return err
	}
	if !contest.OpenAt(c.now()) {
		return ErrContestNotOpen
	}

	artwork, err := c.store.Artwork(ctx, artworkID)
	if err != nil {
		return err
	}
	if artwork.ContestID != contest.ID {
		return ErrArtworkMismatch
	}

	voted, err := c.store.HasVoted(ctx, contest.ID, id)
	if err != nil {
		return fmt.Errorf("failed to check prior votes: %w", err)
	}
	if voted {
		return ErrAlreadyVoted
	}

	return nil
}

// IsPolicy reports whether err is a business-rule rejection rather than
// an infrastructure failure.
func IsPolicy(err error) bool {
	return errors.Is(err, ErrContestNotFound) ||
		errors.Is(err, ErrContestNotOpen) ||
		errors.Is(err, ErrArtworkNotFound) ||
		errors.Is(err, ErrArtworkMismatch) ||
		errors.Is(err, ErrAlreadyVoted)
}
