// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package admission

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danielhkuo/artvote/eligibility"
	"github.com/danielhkuo/artvote/identity"
	"github.com/danielhkuo/artvote/ledger"
	"github.com/danielhkuo/artvote/limiter"
	"github.com/danielhkuo/artvote/metrics"
	"github.com/danielhkuo/artvote/models"
)

// RateLimiter is the vote quota, keyed per identity and contest.
type RateLimiter interface {
	Name() string
	Allow(ctx context.Context, key string) (limiter.Decision, error)
}

// EligibilityChecker runs the advisory pre-write checks.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, contestID, artworkID string, id identity.Identity) error
}

// VoteRecorder is the write side of the ledger.
type VoteRecorder interface {
	RecordVote(ctx context.Context, artworkID, contestID string, id identity.Identity, meta ledger.Metadata) (ledger.Receipt, error)
}

// Request is one vote submission as seen at the request boundary.
type Request struct {
	ContestID  string
	ArtworkID  string
	AccountID  string // from the trusted auth header, may be empty
	Header     http.Header
	RemoteAddr string
	UserAgent  string
	Metadata   map[string]string
}

// Outcome is the classified result of SubmitVote.
type Outcome struct {
	Kind    string // one of models.Outcome*
	Code    string // one of models.Code*
	Message string

	// Set when Kind is accepted
	VoteID     string
	Tally      int64
	RecordedAt time.Time

	// Set when Kind is rate_limited
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Response converts the outcome to its wire form. Only fields relevant to
// the outcome kind are populated.
func (o Outcome) Response() models.VoteResponse {
	resp := models.VoteResponse{
		Outcome:   o.Kind,
		Code:      o.Code,
		Message:   o.Message,
		Retryable: o.Retryable(),
	}
	switch o.Kind {
	case models.OutcomeAccepted:
		tally := o.Tally
		resp.VoteID = o.VoteID
		resp.Tally = &tally
		if !o.RecordedAt.IsZero() {
			recordedAt := o.RecordedAt.UTC()
			resp.RecordedAt = &recordedAt
		}
	case models.OutcomeRateLimited:
		remaining := o.Remaining
		resetAt := o.ResetAt.UTC()
		resp.RemainingQuota = &remaining
		resp.ResetAt = &resetAt
		resp.RetryAfter = o.RetryAfter.String()
	}
	return resp
}

// Retryable reports whether the same request may succeed later.
func (o Outcome) Retryable() bool {
	return o.Kind == models.OutcomeInternalError || o.Kind == models.OutcomeRateLimited
}

// Deps are the collaborators of a Service.
type Deps struct {
	Resolver *identity.Resolver
	Limiter  RateLimiter
	Checker  EligibilityChecker
	Ledger   VoteRecorder
	Metrics  *metrics.Metrics // optional

	// Timeout bounds a whole admission. Zero means no deadline beyond the caller's.
	Timeout time.Duration
}

type Service struct {
	resolver *identity.Resolver
	limiter  RateLimiter
	checker  EligibilityChecker
	ledger   VoteRecorder
	metrics  *metrics.Metrics
	timeout  time.Duration
	now      func() time.Time
}

func NewService(deps Deps) *Service {
	return &Service{
		resolver: deps.Resolver,
		limiter:  deps.Limiter,
		checker:  deps.Checker,
		ledger:   deps.Ledger,
		metrics:  deps.Metrics,
		timeout:  deps.Timeout,
		now:      time.Now,
	}
}

// WithClock replaces time.Now, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SubmitVote admits one vote: validate identifiers, resolve identity,
// consume vote quota, check eligibility, write to the ledger.
//
// Quota is consumed before eligibility runs, so a request rejected by
// eligibility still counts against the identity. Nothing is retried here.
func (s *Service) SubmitVote(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := s.submit(ctx, req)
	s.metrics.ObserveOutcome(out.Kind, out.Code, time.Since(start))
	return out
}

func (s *Service) submit(ctx context.Context, req Request) Outcome {
	contestID, err := uuid.Parse(req.ContestID)
	if err != nil {
		return reject(models.OutcomeMalformed, models.CodeMalformed, "contest id is not a valid identifier")
	}
	artworkID, err := uuid.Parse(req.ArtworkID)
	if err != nil {
		return reject(models.OutcomeMalformed, models.CodeMalformed, "artwork id is not a valid identifier")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	id := s.resolver.Resolve(req.AccountID, req.Header, req.RemoteAddr)

	if ctx.Err() != nil {
		return timedOut(ctx, "rate limit", contestID.String())
	}
	decision, err := s.limiter.Allow(ctx, id.Key()+":"+contestID.String())
	if err != nil {
		if ctx.Err() != nil {
			return timedOut(ctx, "rate limit", contestID.String())
		}
		s.metrics.ObserveLimiter(s.limiter.Name(), metrics.ResultUnavailable)
		return reject(models.OutcomeInternalError, models.CodeLimiterDown, "voting is temporarily unavailable, try again shortly")
	}
	switch {
	case !decision.Allowed:
		s.metrics.ObserveLimiter(s.limiter.Name(), metrics.ResultDenied)
		return s.rateLimited(decision)
	case decision.Degraded:
		s.metrics.ObserveLimiter(s.limiter.Name(), metrics.ResultDegraded)
	default:
		s.metrics.ObserveLimiter(s.limiter.Name(), metrics.ResultAllowed)
	}

	if err := s.checker.CheckEligibility(ctx, contestID.String(), artworkID.String(), id); err != nil {
		if ctx.Err() != nil && !isRejection(err) {
			return timedOut(ctx, "eligibility", contestID.String())
		}
		return eligibilityOutcome(err, contestID.String())
	}

	receipt, err := s.ledger.RecordVote(ctx, artworkID.String(), contestID.String(), id, ledger.Metadata{
		UserAgent: req.UserAgent,
		Extra:     req.Metadata,
	})
	if err != nil {
		return ledgerOutcome(err, contestID.String(), artworkID.String())
	}

	slog.Info("vote accepted",
		"contest_id", contestID.String(),
		"artwork_id", artworkID.String(),
		"vote_id", receipt.VoteID,
		"tally", receipt.Tally,
	)

	return Outcome{
		Kind:       models.OutcomeAccepted,
		Code:       models.CodeAccepted,
		Message:    "Vote recorded",
		VoteID:     receipt.VoteID,
		Tally:      receipt.Tally,
		RecordedAt: receipt.CreatedAt,
	}
}

func (s *Service) rateLimited(d limiter.Decision) Outcome {
	now := s.now()
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	// Whole seconds, rounded up, so a client never retries early
	wait = time.Duration(math.Ceil(wait.Seconds())) * time.Second

	return Outcome{
		Kind:       models.OutcomeRateLimited,
		Code:       models.CodeRateLimited,
		Limit:      d.Limit,
		Message:    "Vote limit reached, you can vote again " + humanize.RelTime(d.ResetAt, now, "ago", "from now"),
		Remaining:  d.Remaining,
		ResetAt:    d.ResetAt,
		RetryAfter: wait,
	}
}

// timedOut reports an admission whose deadline passed before anything was
// written. The request is safe to repeat.
func timedOut(ctx context.Context, stage, contestID string) Outcome {
	slog.Warn("vote admission timed out", "stage", stage, "error", ctx.Err(), "contest_id", contestID)
	return reject(models.OutcomeInternalError, models.CodeTimeout, "voting took too long, try again shortly")
}

func isRejection(err error) bool {
	return errors.Is(err, eligibility.ErrContestNotFound) ||
		errors.Is(err, eligibility.ErrContestNotOpen) ||
		errors.Is(err, eligibility.ErrArtworkNotFound) ||
		errors.Is(err, eligibility.ErrArtworkMismatch) ||
		errors.Is(err, eligibility.ErrAlreadyVoted)
}

func eligibilityOutcome(err error, contestID string) Outcome {
	switch {
	case errors.Is(err, eligibility.ErrContestNotFound):
		return reject(models.OutcomeNotFound, models.CodeContestNotFound, "Contest not found")
	case errors.Is(err, eligibility.ErrContestNotOpen):
		return reject(models.OutcomeContestNotOpen, models.CodeContestNotOpen, "Contest is not open for voting")
	case errors.Is(err, eligibility.ErrArtworkNotFound):
		return reject(models.OutcomeNotFound, models.CodeArtworkNotFound, "Artwork not found")
	case errors.Is(err, eligibility.ErrArtworkMismatch):
		return reject(models.OutcomeNotFound, models.CodeArtworkMismatch, "Artwork is not part of this contest")
	case errors.Is(err, eligibility.ErrAlreadyVoted):
		return reject(models.OutcomeAlreadyVoted, models.CodeAlreadyVoted, "You have already voted in this contest")
	}

	slog.Error("eligibility check failed", "error", err, "contest_id", contestID)
	return reject(models.OutcomeInternalError, models.CodeStorageDown, "voting is temporarily unavailable, try again shortly")
}

func ledgerOutcome(err error, contestID, artworkID string) Outcome {
	switch {
	case errors.Is(err, ledger.ErrDuplicateVote):
		slog.Warn("duplicate vote lost race", "contest_id", contestID, "artwork_id", artworkID)
		return reject(models.OutcomeAlreadyVoted, models.CodeDuplicateVote, "You have already voted in this contest")
	case errors.Is(err, eligibility.ErrArtworkMismatch):
		return reject(models.OutcomeNotFound, models.CodeArtworkMismatch, "Artwork is not part of this contest")
	case errors.Is(err, ledger.ErrOutcomeUnknown):
		slog.Error("vote outcome unknown", "error", err, "contest_id", contestID, "artwork_id", artworkID)
		return reject(models.OutcomeUnknown, models.CodeOutcomeUnknown, "The vote may or may not have been recorded; check before voting again")
	}

	slog.Error("failed to record vote", "error", err, "contest_id", contestID, "artwork_id", artworkID)
	return reject(models.OutcomeInternalError, models.CodeStorageDown, "voting is temporarily unavailable, try again shortly")
}

func reject(kind, code, message string) Outcome {
	return Outcome{Kind: kind, Code: code, Message: message}
}
