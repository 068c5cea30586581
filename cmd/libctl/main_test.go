package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLibctlCommands(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("LIBRARY_AUTH_JWTSECRET", "cli-secret")
	t.Setenv("LIBRARY_DATABASE_PATH", filepath.Join(dir, "library.db"))
	t.Setenv("LIBRARY_STORAGE_LOCALDIR", filepath.Join(dir, "uploads"))

	out, err := runCmd(t, "create-admin", "--email", "ops@example.com", "--password", "opspass1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "created admin ops@example.com")

	catalogue := filepath.Join(dir, "books.json")
	require.NoError(t, os.WriteFile(catalogue, []byte(`[
		{"title": "Emma", "author": "Jane Austen", "isbn": "978-0141439587", "total_copies": 2},
		{"title": "Emma again", "author": "Jane Austen", "isbn": "978-0141439587", "total_copies": 1},
		{"author": "Nobody", "isbn": "978-0000000000", "total_copies": 1}
	]`), 0o600))

	out, err = runCmd(t, "import-books", catalogue)
	require.NoError(t, err, out)
	assert.Contains(t, out, "imported 1, skipped 1 existing, 1 failed")

	out, err = runCmd(t, "sweep-overdue")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 record(s) marked overdue")
}

func TestReadCatalogueErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := readCatalogue(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o600))
	_, err = readCatalogue(empty)
	assert.EqualError(t, err, "catalogue is empty")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir on older Go).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
