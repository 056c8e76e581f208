// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/artvote/admission"
	"github.com/danielhkuo/artvote/identity"
	"github.com/danielhkuo/artvote/middleware"
	"github.com/danielhkuo/artvote/models"
)

// Bounds on client supplied vote metadata
const (
	maxMetadataEntries = 16
	maxMetadataValue   = 256
)

type VotingHandler struct {
	svc      *admission.Service
	resolver *identity.Resolver
}

func NewVotingHandler(svc *admission.Service, resolver *identity.Resolver) *VotingHandler {
	return &VotingHandler{svc: svc, resolver: resolver}
}

// SubmitVote handles POST /contests/{contestID}/artworks/{artworkID}/votes
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	// Body is optional
	var req models.SubmitVoteRequest
	if r.ContentLength != 0 {
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			writeMalformedBody(w, "Invalid JSON")
			return
		}
	}
	if len(req.Metadata) > maxMetadataEntries {
		writeMalformedBody(w, "too many metadata entries")
		return
	}
	for k, v := range req.Metadata {
		if len(k) > maxMetadataValue || len(v) > maxMetadataValue {
			writeMalformedBody(w, "metadata entry too long")
			return
		}
	}

	out := h.svc.SubmitVote(r.Context(), admission.Request{
		ContestID:  r.PathValue("contestID"),
		ArtworkID:  r.PathValue("artworkID"),
		AccountID:  h.resolver.AccountID(r),
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Metadata:   req.Metadata,
	})

	if out.Kind == models.OutcomeRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(int(out.RetryAfter.Seconds())))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(out.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(out.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(out.ResetAt.Unix(), 10))
	}

	middleware.JSONResponse(w, StatusForOutcome(out.Kind), out.Response())
}

// StatusForOutcome maps a vote outcome to its HTTP status code.
func StatusForOutcome(kind string) int {
	switch kind {
	case models.OutcomeAccepted:
		return http.StatusCreated
	case models.OutcomeAlreadyVoted, models.OutcomeContestNotOpen:
		return http.StatusConflict
	case models.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case models.OutcomeNotFound:
		return http.StatusNotFound
	case models.OutcomeMalformed:
		return http.StatusBadRequest
	case models.OutcomeUnknown:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func writeMalformedBody(w http.ResponseWriter, message string) {
	middleware.JSONResponse(w, http.StatusBadRequest, models.VoteResponse{
		Outcome: models.OutcomeMalformed,
		Code:    models.CodeMalformedBody,
		Message: message,
	})
}
