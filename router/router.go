// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/artvote/admission"
	"github.com/danielhkuo/artvote/cliparse"
	"github.com/danielhkuo/artvote/eligibility"
	"github.com/danielhkuo/artvote/handlers"
	"github.com/danielhkuo/artvote/identity"
	"github.com/danielhkuo/artvote/ledger"
	"github.com/danielhkuo/artvote/limiter"
	"github.com/danielhkuo/artvote/metrics"
	"github.com/danielhkuo/artvote/middleware"
)

// NewRouter wires the admission pipeline and registers every route.
// store backs both the vote and the API limiter; reg receives the metrics.
func NewRouter(db *sql.DB, cfg cliparse.Config, store limiter.Store, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	m := metrics.New(reg)
	resolver := identity.NewResolver(cfg.IdentitySalt, identity.SourcesFromHeaders(cfg.AddressHeaders), cfg.AccountHeader)
	votes := ledger.New(db)

	// The vote limiter always fails closed
	voteLimiter := limiter.New("vote", store, cfg.VoteQuota, cfg.VoteWindow)

	apiPolicy := limiter.FailClosed
	if cfg.APILimitFailOpen {
		apiPolicy = limiter.FailOpen
	}
	apiLimit := middleware.RateLimit(limiter.New("api", store, cfg.APIQuota, cfg.APIWindow, limiter.WithPolicy(apiPolicy)), resolver, m)

	svc := admission.NewService(admission.Deps{
		Resolver: resolver,
		Limiter:  voteLimiter,
		Checker:  eligibility.NewChecker(votes),
		Ledger:   votes,
		Metrics:  m,
		Timeout:  cfg.AdmissionTimeout,
	})

	// Initialize handlers
	votingHandler := handlers.NewVotingHandler(svc, resolver)
	contestHandler := handlers.NewContestHandler(votes)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Database unreachable")
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Voting (public, identity from address headers and the auth proxy)
	mux.HandleFunc("POST /contests/{contestID}/artworks/{artworkID}/votes", middleware.WithLogging(apiLimit(votingHandler.SubmitVote)))

	// Contest reads (public)
	mux.HandleFunc("GET /contests/active", middleware.WithLogging(apiLimit(contestHandler.GetActive)))
	mux.HandleFunc("GET /contests/{contestID}/tallies", middleware.WithLogging(apiLimit(contestHandler.GetTallies)))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("artvote API v1"))
	})

	return mux
}
