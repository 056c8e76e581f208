// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/artvote/cliparse"
)

var memCounter atomic.Int64

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(cliparse.DatabaseSQLite, fmt.Sprintf("file:schema_test_%d?mode=memory&cache=shared", memCounter.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, CreateSchema(conn, cliparse.DatabaseSQLite))
	return conn
}

func seed(t *testing.T, conn *sql.DB) {
	t.Helper()
	now := time.Now().UTC()
	_, err := conn.Exec(`INSERT INTO contest (id, week_number, title, opens_at, closes_at, status) VALUES ('c1', 1, 'Week 1', $1, $2, 'active')`,
		now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO contest (id, week_number, title, opens_at, closes_at, status) VALUES ('c2', 2, 'Week 2', $1, $2, 'upcoming')`,
		now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO artwork (id, contest_id, title, position) VALUES ('a1', 'c1', 'One', 1), ('a2', 'c2', 'Two', 1)`)
	require.NoError(t, err)
}

func insertVote(conn *sql.DB, id, artworkID, contestID, hash string) error {
	_, err := conn.Exec(`INSERT INTO vote (id, artwork_id, contest_id, identity_hash) VALUES ($1, $2, $3, $4)`,
		id, artworkID, contestID, hash)
	return err
}

func TestCreateSchemaIdempotent(t *testing.T) {
	conn := openMemory(t)
	assert.NoError(t, CreateSchema(conn, cliparse.DatabaseSQLite))
	assert.NoError(t, CreateSchema(conn, cliparse.DatabaseSQLite))

	require.NoError(t, DropSchema(conn))
	assert.NoError(t, CreateSchema(conn, cliparse.DatabaseSQLite))
}

func TestTallyTrigger(t *testing.T) {
	conn := openMemory(t)
	seed(t, conn)

	require.NoError(t, insertVote(conn, "v1", "a1", "c1", "h1"))
	require.NoError(t, insertVote(conn, "v2", "a1", "c1", "h2"))

	var count int64
	require.NoError(t, conn.QueryRow(`SELECT vote_count FROM artwork WHERE id = 'a1'`).Scan(&count))
	assert.Equal(t, int64(2), count)
}

func TestConstraintClassification(t *testing.T) {
	conn := openMemory(t)
	seed(t, conn)
	require.NoError(t, insertVote(conn, "v1", "a1", "c1", "h1"))

	t.Run("duplicate identity hash", func(t *testing.T) {
		err := insertVote(conn, "v2", "a1", "c1", "h1")
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
		assert.False(t, IsForeignKeyViolation(err))
	})

	t.Run("duplicate primary key", func(t *testing.T) {
		err := insertVote(conn, "v1", "a1", "c1", "h9")
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("artwork from another contest", func(t *testing.T) {
		err := insertVote(conn, "v3", "a2", "c1", "h3")
		require.Error(t, err)
		assert.True(t, IsForeignKeyViolation(err))
		assert.False(t, IsUniqueViolation(err))
	})

	t.Run("unrelated errors", func(t *testing.T) {
		assert.False(t, IsUniqueViolation(sql.ErrNoRows))
		assert.False(t, IsForeignKeyViolation(nil))
	})

	var count int64
	require.NoError(t, conn.QueryRow(`SELECT vote_count FROM artwork WHERE id = 'a1'`).Scan(&count))
	assert.Equal(t, int64(1), count, "rejected inserts must not bump the tally")
}

func TestWithSQLitePragmas(t *testing.T) {
	assert.Equal(t, "votes.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withSQLitePragmas("votes.db"))
	assert.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withSQLitePragmas("file:x?mode=memory"))
	assert.Equal(t, "votes.db?_pragma=journal_mode(WAL)", withSQLitePragmas("votes.db?_pragma=journal_mode(WAL)"))
}
