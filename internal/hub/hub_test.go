package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// user 1 may listen to server 10 and channel 100, nothing else
type fakeAuthorizer struct{}

func (fakeAuthorizer) AuthorizeSubscription(ctx context.Context, userID int64, kind string, id int64) error {
	if userID == 1 && ((kind == KindServer && id == 10) || (kind == KindChannel && id == 100)) {
		return nil
	}
	return errors.New("forbidden")
}

func connect(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HandleClient(w, r, userID)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (string, string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	messageType, payload, found := strings.Cut(string(data), "\n")
	require.True(t, found, "frame without a type line: %s", data)
	return messageType, payload
}

func setup() {
	Setup(zap.NewNop().Sugar(), nil, true, fakeAuthorizer{}, nil)
}

func TestSubscribeAndEmit(t *testing.T) {
	setup()
	conn := connect(t, 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "type": "channel", "id": "100"}))
	messageType, _ := read(t, conn)
	require.Equal(t, Subscribed, messageType)

	require.NoError(t, Emit(MessageCreated, KindChannel, 100, map[string]string{"message": "hello"}))

	messageType, payload := read(t, conn)
	assert.Equal(t, MessageCreated, messageType)
	assert.JSONEq(t, `{"message":"hello"}`, payload)
}

func TestSubscriptionIsAuthorized(t *testing.T) {
	setup()
	conn := connect(t, 2)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "type": "server", "id": "10"}))
	messageType, _ := read(t, conn)
	assert.Equal(t, Error, messageType)
	assert.Zero(t, localPubSub.Subscribers(topic(KindServer, 10)))
}

func TestBadFrames(t *testing.T) {
	setup()
	conn := connect(t, 1)

	frames := []string{
		`not json`,
		`{"action":"subscribe","type":"planet","id":"1"}`,
		`{"action":"subscribe","type":"server","id":"abc"}`,
		`{"action":"dance","type":"server","id":"10"}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		messageType, _ := read(t, conn)
		assert.Equal(t, Error, messageType, f)
	}
}

func TestUnsubscribe(t *testing.T) {
	setup()
	conn := connect(t, 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "type": "server", "id": "10"}))
	messageType, _ := read(t, conn)
	require.Equal(t, Subscribed, messageType)
	assert.Equal(t, 1, localPubSub.Subscribers(topic(KindServer, 10)))

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "unsubscribe", "type": "server", "id": "10"}))
	messageType, _ = read(t, conn)
	require.Equal(t, Unsubscribed, messageType)
	assert.Zero(t, localPubSub.Subscribers(topic(KindServer, 10)))
}

func TestEncode(t *testing.T) {
	message, err := encode(ServerDeleted, map[string]string{"id": "5"})
	require.NoError(t, err)
	assert.Equal(t, "ServerDeleted\n{\"id\":\"5\"}", message)
}

func TestLocalPubSub(t *testing.T) {
	ps := newLocalPubSub()

	ps.Subscribe("server:1", 1)
	ps.Subscribe("server:1", 2)
	ps.Subscribe("channel:1", 1)
	assert.Equal(t, 2, ps.Subscribers("server:1"))

	ps.UnsubscribeFromAll(1)
	assert.Equal(t, 1, ps.Subscribers("server:1"))
	assert.Zero(t, ps.Subscribers("channel:1"))

	ps.Unsubscribe("server:1", 2)
	assert.Empty(t, ps.sessions)
	assert.Empty(t, ps.topics)
}

type denyAll struct{}

func (denyAll) AuthorizeSubscription(ctx context.Context, userID int64, kind string, id int64) error {
	return errors.New("forbidden")
}

func TestRecheckUserDropsRefusedTopics(t *testing.T) {
	setup()
	conn := connect(t, 1)

	for _, f := range []map[string]string{
		{"action": "subscribe", "type": "server", "id": "10"},
		{"action": "subscribe", "type": "channel", "id": "100"},
	} {
		require.NoError(t, conn.WriteJSON(f))
		messageType, _ := read(t, conn)
		require.Equal(t, Subscribed, messageType)
	}

	// still allowed, nothing changes
	RecheckUser(context.Background(), 1)
	assert.Equal(t, 1, localPubSub.Subscribers(topic(KindChannel, 100)))

	Setup(zap.NewNop().Sugar(), nil, true, denyAll{}, nil)
	RecheckUser(context.Background(), 1)

	for i := 0; i < 2; i++ {
		messageType, _ := read(t, conn)
		assert.Equal(t, Unsubscribed, messageType)
	}
	assert.Zero(t, localPubSub.Subscribers(topic(KindServer, 10)))
	assert.Zero(t, localPubSub.Subscribers(topic(KindChannel, 100)))
}
