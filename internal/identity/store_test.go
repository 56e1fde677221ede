package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	sugar := zap.NewNop().Sugar()

	db, err := database.SetupMemory(sugar)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := New(db, sugar)
	require.NoError(t, err)
	return store
}

func createUser(t *testing.T, store *Store, username string) *models.User {
	t.Helper()
	user := &models.User{UserName: username, Email: username + "@Example.com", Password: []byte("hash")}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestCreateAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	user := createUser(t, store, "someone")
	assert.NotZero(t, user.ID)
	assert.Equal(t, models.RoleUser, user.Role)

	byID, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "someone", byID.UserName)
	assert.Equal(t, "someone@example.com", byID.Email)
	assert.Equal(t, []byte("hash"), byID.Password)
	assert.Equal(t, user.CreatedAt.UnixMilli(), byID.CreatedAt.UnixMilli())

	byLogin, err := store.GetByLogin(ctx, "someone@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byLogin.ID)

	byLogin, err = store.GetByLogin(ctx, "someone")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byLogin.ID)

	_, err = store.GetByID(ctx, 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateWithoutPassword(t *testing.T) {
	store := newStore(t)

	user := &models.User{UserName: "oidcuser", Email: "oidc@example.com"}
	require.NoError(t, store.Create(context.Background(), user))

	stored, err := store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Password)
}

func TestDuplicates(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	createUser(t, store, "someone")

	taken, err := store.Taken(ctx, "someone", "other@example.com")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = store.Taken(ctx, "another", "SOMEONE@example.com")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = store.Taken(ctx, "another", "another@example.com")
	require.NoError(t, err)
	assert.False(t, taken)

	err = store.Create(ctx, &models.User{UserName: "someone", Email: "new@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestProfileUpdatesInvalidateSnapshot(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	user := createUser(t, store, "someone")

	author, err := store.Snapshot(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, author.Avatar)

	require.NoError(t, store.SetAvatar(ctx, user.ID, "avatars/abc.webp"))

	author, err = store.Snapshot(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, author.Avatar)
	assert.Equal(t, "avatars/abc.webp", *author.Avatar)

	require.NoError(t, store.UpdateProfile(ctx, user.ID, "Some One"))
	stored, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Some One", stored.DisplayName)

	err = store.SetAvatar(ctx, 42, "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSetRole(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	user := createUser(t, store, "someone")

	require.NoError(t, store.SetRole(ctx, user.ID, models.RoleAdmin))
	stored, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)

	err = store.SetRole(ctx, user.ID, "superuser")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDeleteCascades(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	owner := createUser(t, store, "theowner")
	member := createUser(t, store, "amember")

	statements := []struct {
		query string
		args  []any
	}{
		{"INSERT INTO servers (id, owner_id, name, created_at) VALUES (?, ?, 'owned', 0)", []any{10, owner.ID}},
		{"INSERT INTO servers (id, owner_id, name, created_at) VALUES (?, ?, 'other', 0)", []any{20, member.ID}},
		{"INSERT INTO server_members (server_id, user_id, joined_at) VALUES (?, ?, 0)", []any{10, owner.ID}},
		{"INSERT INTO server_members (server_id, user_id, joined_at) VALUES (?, ?, 0)", []any{10, member.ID}},
		{"INSERT INTO server_members (server_id, user_id, joined_at) VALUES (?, ?, 0)", []any{20, member.ID}},
		{"INSERT INTO server_members (server_id, user_id, joined_at) VALUES (?, ?, 0)", []any{20, owner.ID}},
		{"INSERT INTO channels (id, server_id, name, type, created_at) VALUES (?, ?, 'general', 'text', 0)", []any{100, 10}},
		{"INSERT INTO channels (id, server_id, name, type, created_at) VALUES (?, ?, 'general', 'text', 0)", []any{200, 20}},
		{"INSERT INTO messages (id, channel_id, author_id, author_username, message, created_at) VALUES (?, ?, ?, 'theowner', 'hi', 0)", []any{1000, 200, owner.ID}},
	}
	for _, s := range statements {
		_, err := store.db.Exec(s.query, s.args...)
		require.NoError(t, err)
	}

	require.NoError(t, store.Delete(ctx, owner.ID))

	count := func(query string) int {
		var n int
		require.NoError(t, store.db.QueryRow(query).Scan(&n))
		return n
	}

	assert.Equal(t, 0, count("SELECT COUNT(*) FROM servers WHERE id = 10"))
	assert.Equal(t, 0, count("SELECT COUNT(*) FROM channels WHERE server_id = 10"))
	assert.Equal(t, 1, count("SELECT COUNT(*) FROM servers WHERE id = 20"))
	assert.Equal(t, 1, count("SELECT COUNT(*) FROM server_members WHERE server_id = 20"))
	// the message keeps its author snapshot
	assert.Equal(t, 1, count("SELECT COUNT(*) FROM messages WHERE id = 1000"))

	err := store.Delete(ctx, owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestList(t *testing.T) {
	store := newStore(t)

	createUser(t, store, "firstuser")
	createUser(t, store, "seconduser")

	users, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "firstuser", users[0].UserName)
}
