// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/artvote/cliparse"
	"github.com/danielhkuo/artvote/db"
	"github.com/danielhkuo/artvote/eligibility"
	"github.com/danielhkuo/artvote/ledger"
	"github.com/danielhkuo/artvote/limiter"
	"github.com/danielhkuo/artvote/middleware"
	"github.com/danielhkuo/artvote/router"
)

const (
	janitorInterval  = time.Minute
	auditInterval    = 5 * time.Minute
	shutdownDeadline = 10 * time.Second
)

func main() {
	if err := cliparse.LoadEnvFile(".env"); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("Server closed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server closed")
}

func run(cfg cliparse.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := db.CreateSchema(dbConn, cfg.DatabaseType); err != nil {
		return err
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Rate limiter backing store
	var store limiter.Store
	var memStore *limiter.MemoryStore
	if cfg.RedisURL != "" {
		client, err := limiter.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		store = limiter.NewRedisStore(client)
		slog.Info("Rate limiter using redis")
	} else {
		memStore = limiter.NewMemoryStore()
		store = memStore
		slog.Warn("REDIS_URL not set, rate limits are per process")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := http.Server{
		Handler:           middleware.CORS(router.NewRouter(dbConn, cfg, store, reg)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if memStore != nil {
		g.Go(func() error { return memStore.RunJanitor(gctx, janitorInterval) })
	}

	g.Go(func() error { return auditTallies(gctx, ledger.New(dbConn), auditInterval) })

	return g.Wait()
}

// auditTallies periodically compares the active contest's tallies with its
// vote rows and logs any drift.
func auditTallies(ctx context.Context, l *ledger.Ledger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		contest, err := l.ActiveContest(ctx)
		if errors.Is(err, eligibility.ErrContestNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("tally audit skipped", "error", err)
			continue
		}

		drifts, err := l.AuditTallies(ctx, contest.ID)
		if err != nil {
			slog.Warn("tally audit failed", "error", err, "contest_id", contest.ID)
			continue
		}
		for _, d := range drifts {
			slog.Error("tally drift detected",
				"contest_id", contest.ID,
				"artwork_id", d.ArtworkID,
				"tally", d.Tally,
				"votes", d.Votes,
			)
		}
	}
}

func newLogger(cfg cliparse.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
