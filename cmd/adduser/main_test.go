package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/internal/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "adduser.db")

	path := filepath.Join(dir, "config.yaml")
	yaml := "database:\n  driver: sqlite\n  dsn: \"" + dsn + "\"\nauth:\n  bcrypt_cost: 4\n  hash_workers: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path, dsn
}

func TestRunRegistersUser(t *testing.T) {
	path, dsn := writeConfig(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-config", path,
		"-username", "alice",
		"-email", "Alice@Example.com",
		"-password", "secret1",
	}, strings.NewReader(""), &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())

	id, err := uuid.Parse(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)

	db, err := database.Open(context.Background(), database.Config{Driver: database.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	defer db.Close()

	user, err := auth.NewRepositoryManager(db).Users().GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)
}

func TestRunReadsPasswordFromStdin(t *testing.T) {
	path, _ := writeConfig(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-config", path,
		"-username", "bob",
		"-email", "bob@example.com",
	}, strings.NewReader("hunter22\n"), &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.NotEmpty(t, strings.TrimSpace(stdout.String()))
}

func TestRunRejectsDuplicateEmail(t *testing.T) {
	path, _ := writeConfig(t)
	args := []string{"-config", path, "-username", "alice", "-email", "alice@example.com", "-password", "secret1"}

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), args, strings.NewReader(""), &stdout, &stderr))

	stderr.Reset()
	code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), auth.TextCodeDuplicateEmail)
}

func TestRunRequiresFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-username", "alice"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "-email")
}

func TestRunEmptyPassword(t *testing.T) {
	path, _ := writeConfig(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-config", path,
		"-username", "carol",
		"-email", "carol@example.com",
	}, strings.NewReader("\n"), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), auth.TextCodeEmptyPassword)
}
