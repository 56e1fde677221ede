package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupMemoryCreatesTables(t *testing.T) {
	db, err := SetupMemory(zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"users", "servers", "server_members", "channels", "messages"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		require.NoError(t, err, table)
		assert.Zero(t, count, table)
	}

	// running it twice must not fail on the indexes
	require.NoError(t, setupTables(db))
}

func TestForeignKeysCascade(t *testing.T) {
	db, err := SetupMemory(zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("INSERT INTO users (id, email, username, created_at) VALUES (1, 'a@b.cd', 'someone', 0)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO servers (id, owner_id, name, created_at) VALUES (10, 1, 'server', 0)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO channels (id, server_id, name, type, created_at) VALUES (100, 10, 'general', 'text', 0)")
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM channels").Scan(&count))
	assert.Zero(t, count)
}

func TestTransactionRollsBack(t *testing.T) {
	db, err := SetupMemory(zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	failure := errors.New("stop")
	err = Transaction(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO users (id, email, username, created_at) VALUES (1, 'a@b.cd', 'someone', 0)")
		require.NoError(t, err)
		return failure
	})
	assert.ErrorIs(t, err, failure)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Zero(t, count)
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := SetupMemory(zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("INSERT INTO users (id, email, username, created_at) VALUES (1, 'a@b.cd', 'someone', 0)")
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO users (id, email, username, created_at) VALUES (2, 'x@b.cd', 'someone', 0)")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("no such table")))
}
