// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/artvote/limiter"
	"github.com/danielhkuo/artvote/models"
	"github.com/danielhkuo/artvote/testutil"
)

func newTestRouter(t *testing.T) (*http.ServeMux, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	return NewRouter(db, cfg, limiter.NewMemoryStore(), prometheus.NewRegistry()), db
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	expected := "artvote API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/"},
		{"POST", "/contests/c/artworks/a/votes"},
		{"GET", "/contests/active"},
		{"GET", "/contests/c/tallies"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"GET", "/contests/c/artworks/a/votes"},
		{"DELETE", "/contests/c/tallies"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	mux, _ := newTestRouter(t)

	for _, path := range []string{"/no/such/path", "/contests", "/contests/c"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Expected 404 for GET %s, got %d", path, w.Code)
			}
		})
	}
}

func TestVoteThroughRouter(t *testing.T) {
	mux, db := newTestRouter(t)

	contestID := testutil.CreateTestContest(t, db, models.StatusActive)
	artworkID := testutil.AddTestArtwork(t, db, contestID, 1)
	path := "/contests/" + contestID + "/artworks/" + artworkID + "/votes"

	req := testutil.MakeRequest("POST", path, nil, map[string]string{"X-Forwarded-For": "203.0.113.7"})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	if w.Header().Get("X-RateLimit-Limit") != "100" {
		t.Errorf("Expected API rate limit headers, got %q", w.Header().Get("X-RateLimit-Limit"))
	}

	// A denied vote reports the vote quota, not the API quota
	req = testutil.MakeRequest("POST", path, nil, map[string]string{"X-Forwarded-For": "203.0.113.7"})
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)

	if got := w.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Errorf("Expected vote quota limit 1 on denied vote, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("Expected 0 remaining on denied vote, got %q", got)
	}

	// Outcome counters show up on the metrics endpoint
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	body := w.Body.String()
	if !strings.Contains(body, `artvote_vote_outcomes_total{code="VOTE_ACCEPTED",outcome="accepted"} 1`) {
		t.Errorf("Expected accepted vote counter in metrics output:\n%s", body)
	}
	if !strings.Contains(body, `artvote_limiter_decisions_total{limiter="api",result="allowed"}`) {
		t.Errorf("Expected api limiter counter in metrics output")
	}

	if tally := testutil.Tally(t, db, artworkID); tally != 1 {
		t.Errorf("Expected tally 1, got %d", tally)
	}
}
