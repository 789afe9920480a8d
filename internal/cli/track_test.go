package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrofeed/retrofeed/internal/reconcile"
)

// newTestDB creates a database file with post and comment tables and
// returns its path.
func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE post (id INTEGER PRIMARY KEY, content TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE comment (id TEXT PRIMARY KEY, content TEXT)`)
	require.NoError(t, err)
	return path
}

func triggerNames(t *testing.T, path string) []string {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'trigger' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func execTrack(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTrackCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTrackInstallsTriggers(t *testing.T) {
	path := newTestDB(t)

	out, err := execTrack(t, path)
	require.NoError(t, err)

	assert.Contains(t, out, "6 created, 0 replaced, 0 unchanged")
	assert.Len(t, triggerNames(t, path), 6)
}

func TestTrackSecondRunIsNoop(t *testing.T) {
	path := newTestDB(t)

	_, err := execTrack(t, path)
	require.NoError(t, err)

	out, err := execTrack(t, path)
	require.NoError(t, err)
	assert.Contains(t, out, "0 created, 0 replaced, 6 unchanged")
}

func TestTrackTableFilter(t *testing.T) {
	path := newTestDB(t)

	_, err := execTrack(t, path, "--table", "post")
	require.NoError(t, err)

	names := triggerNames(t, path)
	require.Len(t, names, 3)
	for _, name := range names {
		assert.Contains(t, name, "retrofeed_post_")
	}
}

func TestTrackUnknownTable(t *testing.T) {
	path := newTestDB(t)

	_, err := execTrack(t, path, "--table", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	// user-input errors abort before any DDL
	assert.Empty(t, triggerNames(t, path))
}

func TestTrackDryRun(t *testing.T) {
	path := newTestDB(t)

	out, err := execTrack(t, path, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "6 created")
	assert.Empty(t, triggerNames(t, path))
}

func TestTrackJSONFormat(t *testing.T) {
	path := newTestDB(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTrackCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())

	var report reconcile.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.NotEmpty(t, report.RunToken)
	assert.Len(t, report.Entries, 6)
}

func TestTrackConfigFile(t *testing.T) {
	path := newTestDB(t)
	cfgPath := filepath.Join(t.TempDir(), "retrofeed.yaml")
	cfg := "tables:\n  - post\nautoindex: false\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	_, err := execTrack(t, path, "--config", cfgPath)
	require.NoError(t, err)

	names := triggerNames(t, path)
	require.Len(t, names, 3)
	for _, name := range names {
		assert.Contains(t, name, "retrofeed_post_")
	}

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'index' AND name LIKE 'retrofeed_%'
	`).Scan(&count))
	assert.Zero(t, count)
}

func TestTrackFlagsWinOverConfig(t *testing.T) {
	path := newTestDB(t)
	cfgPath := filepath.Join(t.TempDir(), "retrofeed.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("tables:\n  - comment\n"), 0644))

	_, err := execTrack(t, path, "--config", cfgPath, "--table", "post")
	require.NoError(t, err)

	names := triggerNames(t, path)
	require.Len(t, names, 3)
	for _, name := range names {
		assert.Contains(t, name, "retrofeed_post_")
	}
}

func TestTrackBadConfigPath(t *testing.T) {
	path := newTestDB(t)

	_, err := execTrack(t, path, "--config", "/nonexistent/retrofeed.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
