package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guildchat-backend/internal/config"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/identity"
	"guildchat-backend/internal/models"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := fmt.Sprintf(`{"AccessTokenSecret": "a", "RefreshTokenSecret": "b", "SqlitePath": %q}`, filepath.Join(dir, "test.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func seedUser(t *testing.T, path string) int64 {
	t.Helper()
	cfg, err := config.Read(path)
	require.NoError(t, err)

	sugar := zap.NewNop().Sugar()
	db, err := database.Setup(cfg, sugar)
	require.NoError(t, err)
	defer db.Close()

	store, err := identity.New(db, sugar)
	require.NoError(t, err)

	user := &models.User{UserName: "alice_01", Email: "alice@example.com"}
	require.NoError(t, store.Create(context.Background(), user))
	return user.ID
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUserCommands(t *testing.T) {
	path := writeConfig(t)
	userID := seedUser(t, path)

	out, err := run(t, "-c", path, "users", "role", fmt.Sprint(userID), "--set", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "is now admin")

	out, err = run(t, "-c", path, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alice_01")
	assert.Contains(t, out, "admin")

	_, err = run(t, "-c", path, "users", "delete", fmt.Sprint(userID))
	require.NoError(t, err)

	out, err = run(t, "-c", path, "users", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "alice_01")
}

func TestInvalidUserID(t *testing.T) {
	path := writeConfig(t)

	_, err := run(t, "-c", path, "users", "delete", "abc")
	assert.Error(t, err)
}
