// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/artvote/eligibility"
	"github.com/danielhkuo/artvote/ledger"
	"github.com/danielhkuo/artvote/middleware"
	"github.com/danielhkuo/artvote/models"
)

// ContestHandler serves read-only contest views.
type ContestHandler struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

func NewContestHandler(l *ledger.Ledger) *ContestHandler {
	return &ContestHandler{ledger: l, now: time.Now}
}

// GetActive handles GET /contests/active
func (h *ContestHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	contest, err := h.ledger.ActiveContest(r.Context())
	if errors.Is(err, eligibility.ErrContestNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "No active contest")
		return
	}
	if err != nil {
		slog.Error("failed to query active contest", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Database error")
		return
	}

	h.writeTallies(r.Context(), w, contest)
}

// GetTallies handles GET /contests/{contestID}/tallies
func (h *ContestHandler) GetTallies(w http.ResponseWriter, r *http.Request) {
	contestID, err := uuid.Parse(r.PathValue("contestID"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "contest id is not a valid identifier")
		return
	}

	contest, err := h.ledger.Contest(r.Context(), contestID.String())
	if errors.Is(err, eligibility.ErrContestNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Contest not found")
		return
	}
	if err != nil {
		slog.Error("failed to query contest", "error", err, "contest_id", contestID.String())
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Database error")
		return
	}

	h.writeTallies(r.Context(), w, contest)
}

func (h *ContestHandler) writeTallies(ctx context.Context, w http.ResponseWriter, contest models.Contest) {
	artworks, err := h.ledger.Tallies(ctx, contest.ID)
	if err != nil {
		slog.Error("failed to query tallies", "error", err, "contest_id", contest.ID)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Database error")
		return
	}

	var total int64
	for _, a := range artworks {
		total += a.VoteCount
	}

	middleware.JSONResponse(w, http.StatusOK, models.ContestTallies{
		Contest:    contest,
		VotingOpen: contest.OpenAt(h.now()),
		Artworks:   artworks,
		TotalVotes: total,
	})
}
