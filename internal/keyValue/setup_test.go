package keyValue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLocal(t *testing.T) {
	t.Helper()
	require.NoError(t, Setup(zap.NewNop().Sugar(), nil, true))

	mutex.Lock()
	hashmap = make(map[string]Value)
	mutex.Unlock()

	t.Cleanup(func() {
		Stop()
		now = time.Now
	})
}

func TestSetGetDel(t *testing.T) {
	setupLocal(t)

	require.NoError(t, Set("refresh_token:abc", "1", time.Hour))

	value, err := Get("refresh_token:abc")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	exists, err := Exists("refresh_token:abc")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, Del("refresh_token:abc"))

	exists, err = Exists("refresh_token:abc")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetDelRemovesKey(t *testing.T) {
	setupLocal(t)

	require.NoError(t, Set("key", "value", time.Hour))

	value, err := GetDel("key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	value, err = GetDel("key")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestExpiredKeys(t *testing.T) {
	setupLocal(t)

	start := time.Now()
	now = func() time.Time { return start }

	require.NoError(t, Set("short", "x", time.Minute))
	require.NoError(t, Set("long", "y", time.Hour))

	now = func() time.Time { return start.Add(2 * time.Minute) }

	value, err := Get("short")
	require.NoError(t, err)
	assert.Empty(t, value, "expired key must not be returned before the sweep")

	removeExpiredKeys()

	mutex.RLock()
	_, shortKept := hashmap["short"]
	_, longKept := hashmap["long"]
	mutex.RUnlock()

	assert.False(t, shortKept)
	assert.True(t, longKept)
}

func TestRedisModeNeedsClient(t *testing.T) {
	err := Setup(zap.NewNop().Sugar(), nil, false)
	assert.Error(t, err)

	// leave the package in local mode for other tests
	require.NoError(t, Setup(zap.NewNop().Sugar(), nil, true))
	Stop()
}
