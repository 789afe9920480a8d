package changefeed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func objectExists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = ? AND name = ?`, kind, name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestEnsureSchemaCreatesObjects(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))

	assert.True(t, objectExists(t, db, "table", TableName))
	assert.True(t, objectExists(t, db, "view", ViewName))
	assert.True(t, objectExists(t, db, "index", TableName+"_source_subject_id_idx"))
	assert.True(t, objectExists(t, db, "index", TableName+"_time_id_idx"))
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))
	}
	assert.True(t, objectExists(t, db, "table", TableName))
}

func TestEnsureSchemaWithoutIndices(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, db, Options{}))

	assert.False(t, objectExists(t, db, "index", TableName+"_source_subject_id_idx"))
	assert.False(t, objectExists(t, db, "index", TableName+"_time_id_idx"))
}

func TestEnsureSchemaPreservesRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))

	_, err := db.Exec(`
		INSERT INTO "`+TableName+`" (source, subject, type, specversion, data)
		VALUES ('post', '1', 'post.created', ?, '{"new":{"id":1}}')
	`, SpecVersion)
	require.NoError(t, err)

	// re-running must never touch historical rows
	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "`+TableName+`"`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnsureSchemaRecreatesDroppedView(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))

	_, err := db.Exec(`DROP VIEW "` + ViewName + `"`)
	require.NoError(t, err)

	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))
	assert.True(t, objectExists(t, db, "view", ViewName))
}

func seedEvents(t *testing.T, db *sql.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := db.Exec(`
			INSERT INTO "`+TableName+`" (source, subject, type, specversion, data)
			VALUES ('post', ?, 'post.created', ?, '{"new":{}}')
		`, i+1, SpecVersion)
		require.NoError(t, err)
	}
}

func TestReadEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))
	seedEvents(t, db, 3)

	events, err := ReadEvents(ctx, db, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].ID)
	assert.Equal(t, "post", events[0].Source)
	assert.Equal(t, "1", events[0].Subject)
	assert.Equal(t, "post.created", events[0].Type)
	assert.Equal(t, SpecVersion, events[0].SpecVersion)
	assert.NotZero(t, events[0].Time)
}

func TestReadEventsAfterAndLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))
	seedEvents(t, db, 5)

	events, err := ReadEvents(ctx, db, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].ID)
	assert.Equal(t, int64(4), events[1].ID)
}

func TestReadEventsEmptyFeed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))

	events, err := ReadEvents(ctx, db, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestReadCloudEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, Options{Autoindex: true}))
	seedEvents(t, db, 2)

	docs, err := ReadCloudEvents(ctx, db, 1, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0], `"specversion":"1.0"`)
	assert.Contains(t, docs[0], `"sequence":"00000000000000000002"`)
}
