package models

import "time"

// Contest status constants
const (
	StatusUpcoming = "upcoming"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Vote outcome constants
const (
	OutcomeAccepted       = "accepted"
	OutcomeAlreadyVoted   = "already_voted"
	OutcomeRateLimited    = "rate_limited"
	OutcomeContestNotOpen = "contest_not_open"
	OutcomeNotFound       = "not_found"
	OutcomeMalformed      = "malformed"
	OutcomeInternalError  = "internal_error"
	OutcomeUnknown        = "unknown"
)

// Machine-readable rejection codes
const (
	CodeAccepted          = "VOTE_ACCEPTED"
	CodeAlreadyVoted      = "ALREADY_VOTED"
	CodeDuplicateVote     = "DUPLICATE_VOTE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeContestNotOpen    = "CONTEST_NOT_OPEN"
	CodeContestNotFound   = "CONTEST_NOT_FOUND"
	CodeArtworkNotFound   = "ARTWORK_NOT_FOUND"
	CodeArtworkMismatch   = "ARTWORK_NOT_IN_CONTEST"
	CodeMalformed         = "MALFORMED_IDENTIFIER"
	CodeMalformedBody     = "MALFORMED_BODY"
	CodeLimiterDown       = "RATE_LIMITER_UNAVAILABLE"
	CodeStorageDown       = "STORAGE_UNAVAILABLE"
	CodeOutcomeUnknown    = "OUTCOME_UNKNOWN"
	CodeTimeout           = "ADMISSION_TIMEOUT"
	CodeAPIQuotaExhausted = "API_RATE_LIMITED"
)

// Request types

// Free-form client details stored with a vote for abuse forensics
type SubmitVoteRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response types

type VoteResponse struct {
	Outcome        string     `json:"outcome"`
	Code           string     `json:"code"`
	Message        string     `json:"message"`
	Retryable      bool       `json:"retryable"`
	VoteID         string     `json:"vote_id,omitempty"`
	RecordedAt     *time.Time `json:"recorded_at,omitempty"`
	Tally          *int64     `json:"tally,omitempty"`
	RemainingQuota *int       `json:"remaining_quota,omitempty"`
	ResetAt        *time.Time `json:"reset_at,omitempty"`
	RetryAfter     string     `json:"retry_after,omitempty"`
}

type ContestTallies struct {
	Contest    Contest   `json:"contest"`
	VotingOpen bool      `json:"voting_open"`
	Artworks   []Artwork `json:"artworks"`
	TotalVotes int64     `json:"total_votes"`
}

// Domain types

type Contest struct {
	ID         string    `json:"id"`
	WeekNumber int       `json:"week_number"`
	Title      string    `json:"title"`
	OpensAt    time.Time `json:"opens_at"`
	ClosesAt   time.Time `json:"closes_at"`
	Status     string    `json:"status"`
}

// OpenAt reports whether votes are admitted at now. The close instant
// itself is already closed, and a contest still flagged active after its
// close time counts as closed.
func (c Contest) OpenAt(now time.Time) bool {
	return c.Status == StatusActive && !now.Before(c.OpensAt) && now.Before(c.ClosesAt)
}

type Artwork struct {
	ID        string `json:"id"`
	ContestID string `json:"contest_id"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	VoteCount int64  `json:"vote_count"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type RateLimitResponse struct {
	Error          string    `json:"error"`
	Code           string    `json:"code"`
	Message        string    `json:"message"`
	RemainingQuota int       `json:"remaining_quota"`
	ResetAt        time.Time `json:"reset_at"`
}
