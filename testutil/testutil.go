// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/artvote/cliparse"
	"github.com/danielhkuo/artvote/db"
	"github.com/danielhkuo/artvote/identity"
)

// TestDBURLEnv selects a PostgreSQL database for tests. When unset, each
// test gets its own in-memory SQLite database.
const TestDBURLEnv = "ARTVOTE_TEST_DATABASE_URL"

var dbCounter atomic.Int64

// SetupTestDB creates a fresh test database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbType, url := cliparse.DatabaseSQLite, fmt.Sprintf("file:artvote_test_%d?mode=memory&cache=shared", dbCounter.Add(1))
	if pgURL := os.Getenv(TestDBURLEnv); pgURL != "" {
		dbType, url = cliparse.DatabasePostgres, pgURL
	}

	conn, err := db.Open(dbType, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Clean up tables before each test
	if err := db.DropSchema(conn); err != nil {
		t.Fatalf("Failed to clean database: %v", err)
	}
	if err := db.CreateSchema(conn, dbType); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// AddSlowVoteTrigger makes every vote insert take far longer than any test
// deadline, so a context deadline fires while the write is in flight.
func AddSlowVoteTrigger(t *testing.T, conn *sql.DB) {
	t.Helper()

	stmt := `
		CREATE TRIGGER trg_vote_slow AFTER INSERT ON vote
		BEGIN
			SELECT COUNT(*) FROM (
				WITH RECURSIVE spin(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM spin WHERE n < 1000000000)
				SELECT n FROM spin
			);
		END;
	`
	if os.Getenv(TestDBURLEnv) != "" {
		stmt = `
			CREATE OR REPLACE FUNCTION vote_slow() RETURNS TRIGGER AS $$
			BEGIN
				PERFORM pg_sleep(5);
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql;

			DROP TRIGGER IF EXISTS trg_vote_slow ON vote;
			CREATE TRIGGER trg_vote_slow AFTER INSERT ON vote
				FOR EACH ROW EXECUTE FUNCTION vote_slow();
		`
	}

	if _, err := conn.Exec(stmt); err != nil {
		t.Fatalf("Failed to create slow vote trigger: %v", err)
	}
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3318,
		DatabaseType:     cliparse.DatabaseSQLite,
		IdentitySalt:     "test-identity-salt",
		AddressHeaders:   []string{"X-Forwarded-For", "X-Real-IP"},
		AccountHeader:    "X-Account-ID",
		VoteQuota:        1,
		VoteWindow:       24 * time.Hour,
		APIQuota:         100,
		APIWindow:        time.Minute,
		AdmissionTimeout: 5 * time.Second,
	}
}

// TestResolver builds the identity resolver for a test configuration
func TestResolver(cfg cliparse.Config) *identity.Resolver {
	return identity.NewResolver(cfg.IdentitySalt, identity.SourcesFromHeaders(cfg.AddressHeaders), cfg.AccountHeader)
}

var weekCounter atomic.Int64

// CreateTestContest creates a contest and returns its ID.
// An active contest opened an hour ago and closes in six days.
func CreateTestContest(t *testing.T, conn *sql.DB, status string) string {
	t.Helper()
	now := time.Now().UTC()
	return CreateTestContestWindow(t, conn, status, now.Add(-time.Hour), now.Add(6*24*time.Hour))
}

// CreateTestContestWindow creates a contest with an explicit voting window
func CreateTestContestWindow(t *testing.T, conn *sql.DB, status string, opensAt, closesAt time.Time) string {
	t.Helper()

	contestID := uuid.NewString()
	week := weekCounter.Add(1)
	_, err := conn.Exec(`
		INSERT INTO contest (id, week_number, title, opens_at, closes_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, contestID, week, fmt.Sprintf("Week %d", week), opensAt.UTC(), closesAt.UTC(), status, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test contest: %v", err)
	}

	return contestID
}

// AddTestArtwork adds an artwork to a contest and returns the artwork ID
func AddTestArtwork(t *testing.T, conn *sql.DB, contestID string, position int) string {
	t.Helper()

	artworkID := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO artwork (id, contest_id, title, position, vote_count)
		VALUES ($1, $2, $3, $4, 0)
	`, artworkID, contestID, fmt.Sprintf("Artwork %d", position), position)
	if err != nil {
		t.Fatalf("Failed to create test artwork: %v", err)
	}

	return artworkID
}

// CountVotes returns the number of vote rows for an artwork
func CountVotes(t *testing.T, conn *sql.DB, artworkID string) int64 {
	t.Helper()

	var n int64
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE artwork_id = $1`, artworkID).Scan(&n); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	return n
}

// Tally returns the stored vote_count of an artwork
func Tally(t *testing.T, conn *sql.DB, artworkID string) int64 {
	t.Helper()

	var n int64
	if err := conn.QueryRow(`SELECT vote_count FROM artwork WHERE id = $1`, artworkID).Scan(&n); err != nil {
		t.Fatalf("Failed to query tally: %v", err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
