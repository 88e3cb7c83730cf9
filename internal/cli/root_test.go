package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "migrate", "randomize", "import-recipes", "metrics-cleanup", "token"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

// run executes the CLI against a fresh SQLite database in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PLANNER_CONFIG", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", filepath.Join(dir, "planner.db"))
	t.Setenv("AUTH_TOKEN_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportAndRandomize(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "recipes.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{"id": "r1", "title": "Tacos", "ingredients": ["beef", "corn"]},
		{"id": "r2", "title": "Chili", "ingredients": ["beef", "bean"]}
	]`), 0o644))

	out, err := run(t, dir, "import-recipes", "--household", "1", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 recipes (0 skipped, 0 failed).")

	out, err = run(t, dir, "randomize", "--household", "1", "--count", "5", "--week", "12", "--year", "2025", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Recipes []struct {
				ID string `json:"id"`
			} `json:"recipes"`
			TotalAvailable int `json:"totalAvailable"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.TotalAvailable)
	// Both recipes share the primary ingredient.
	assert.Len(t, resp.Data.Recipes, 1)
}

func TestRandomizeValidationIsCommandError(t *testing.T) {
	_, err := run(t, t.TempDir(), "randomize", "--household", "1", "--week", "54", "--year", "2025")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMigrateAndCleanup(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied (sqlite).")

	out, err = run(t, dir, "metrics-cleanup", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully removed 0 old metric records.")

	_, err = run(t, dir, "metrics-cleanup", "--days", "-1")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, t.TempDir(), "token", "--household", "3")
	require.NoError(t, err)
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out)

	_, err = run(t, t.TempDir(), "token", "--household", "0")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, t.TempDir(), "migrate", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", assert.AnError)))
}
