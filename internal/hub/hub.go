package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

const (
	KindServer  = "server"
	KindChannel = "channel"
)

// Authorizer decides whether a user may listen to the events of a server or channel.
type Authorizer interface {
	AuthorizeSubscription(ctx context.Context, userID int64, kind string, id int64) error
}

type Client struct {
	UserID    int64
	SessionID int64
	Conn      *websocket.Conn
	Ctx       context.Context
	PubSub    *redis.PubSub
	send      chan string

	mutex         sync.Mutex
	subscriptions map[string]bool
}

var clients = make(map[int64]*Client)
var clientsMutex sync.RWMutex
var lastSessionID atomic.Int64

var sugar *zap.SugaredLogger
var redisClient *redis.Client
var redisCtx = context.Background()
var selfContained = true
var authorizer Authorizer
var allowedOrigins []string

var localPubSub = newLocalPubSub()

func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool, _authorizer Authorizer, _allowedOrigins []string) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained
	authorizer = _authorizer
	allowedOrigins = _allowedOrigins
}

// checkOrigin accepts same-origin requests and the configured origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(allowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

type frame struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	ID     string `json:"id"`
}

func HandleClient(w http.ResponseWriter, r *http.Request, userID int64) {
	sugar.Debugf("Connecting user ID [%d] to WebSocket", userID)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request
		sugar.Debug(err)
		return
	}
	defer conn.Close()

	clientCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &Client{
		UserID:        userID,
		SessionID:     lastSessionID.Add(1),
		Conn:          conn,
		Ctx:           clientCtx,
		send:          make(chan string, sendBuffer),
		subscriptions: make(map[string]bool),
	}

	if !selfContained {
		client.PubSub = redisClient.Subscribe(clientCtx)
		defer client.PubSub.Close()
		go forwardRedisMessages(client)
	}

	setClient(client)
	defer deleteClient(client)

	go writeLoop(client, cancel)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// listening to incoming messages directly from client
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sugar.Debug(err)
			}
			break
		}
		handleFrame(client, data)
	}
}

func writeLoop(client *Client, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-client.Ctx.Done():
			return
		case message := <-client.send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				sugar.Debug(err)
				client.Conn.Close()
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Conn.Close()
				return
			}
		}
	}
}

// listening to redis pub/sub messages to send them to client
func forwardRedisMessages(client *Client) {
	ch := client.PubSub.Channel()
	for {
		select {
		case <-client.Ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			client.deliver(msg.Payload)
		}
	}
}

// deliver never blocks, a client that can't keep up loses events.
func (c *Client) deliver(message string) {
	select {
	case c.send <- message:
	default:
		sugar.Warnf("Dropping event for session ID [%d], send buffer is full", c.SessionID)
	}
}

func (c *Client) reply(messageType string, payload any) {
	message, err := encode(messageType, payload)
	if err != nil {
		sugar.Error(err)
		return
	}
	c.deliver(message)
}

func handleFrame(client *Client, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		client.reply(Error, map[string]string{"message": "Malformed frame"})
		return
	}

	if f.Type != KindServer && f.Type != KindChannel {
		client.reply(Error, map[string]string{"message": "Unknown subscription type"})
		return
	}

	id, err := strconv.ParseInt(f.ID, 10, 64)
	if err != nil || id <= 0 {
		client.reply(Error, map[string]string{"message": "Invalid id"})
		return
	}

	key := topic(f.Type, id)

	switch f.Action {
	case "subscribe":
		if err := authorizer.AuthorizeSubscription(client.Ctx, client.UserID, f.Type, id); err != nil {
			sugar.Debugf("User ID [%d] can't subscribe to %s: %v", client.UserID, key, err)
			client.reply(Error, map[string]string{"message": "Not allowed to subscribe", "id": f.ID, "type": f.Type})
			return
		}
		if err := subscribe(client, key); err != nil {
			sugar.Error(err)
			client.reply(Error, map[string]string{"message": "Couldn't subscribe"})
			return
		}
		client.reply(Subscribed, f)
	case "unsubscribe":
		if err := unsubscribe(client, key); err != nil {
			sugar.Error(err)
		}
		client.reply(Unsubscribed, f)
	default:
		client.reply(Error, map[string]string{"message": "Unknown action"})
	}
}

func topic(kind string, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func subscribe(client *Client, key string) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	if client.subscriptions[key] {
		return nil
	}

	if selfContained {
		localPubSub.Subscribe(key, client.SessionID)
	} else if err := client.PubSub.Subscribe(client.Ctx, key); err != nil {
		return err
	}

	client.subscriptions[key] = true
	sugar.Debugf("Session ID [%d] subscribed to %s", client.SessionID, key)
	return nil
}

func unsubscribe(client *Client, key string) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	if !client.subscriptions[key] {
		return nil
	}
	delete(client.subscriptions, key)

	if selfContained {
		localPubSub.Unsubscribe(key, client.SessionID)
		return nil
	}
	return client.PubSub.Unsubscribe(client.Ctx, key)
}

func setClient(client *Client) {
	sugar.Debugf("Adding user ID [%d] to clients as session ID [%d]", client.UserID, client.SessionID)
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	clients[client.SessionID] = client
}

func deleteClient(client *Client) {
	sugar.Debugf("Removing session ID [%d] from clients", client.SessionID)
	if selfContained {
		localPubSub.UnsubscribeFromAll(client.SessionID)
	}

	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	delete(clients, client.SessionID)
}

func GetClient(sessionID int64) (*Client, bool) {
	clientsMutex.RLock()
	defer clientsMutex.RUnlock()

	client, exists := clients[sessionID]
	return client, exists
}

// RecheckUser runs the authorizer again on every topic the sessions of a user hold and
// drops the ones it refuses, used when the user loses access to a server.
func RecheckUser(ctx context.Context, userID int64) {
	clientsMutex.RLock()
	var sessions []*Client
	for _, client := range clients {
		if client.UserID == userID {
			sessions = append(sessions, client)
		}
	}
	clientsMutex.RUnlock()

	for _, client := range sessions {
		client.mutex.Lock()
		keys := make([]string, 0, len(client.subscriptions))
		for key := range client.subscriptions {
			keys = append(keys, key)
		}
		client.mutex.Unlock()

		for _, key := range keys {
			kind, rawID, _ := strings.Cut(key, ":")
			id, err := strconv.ParseInt(rawID, 10, 64)
			if err == nil {
				err = authorizer.AuthorizeSubscription(ctx, userID, kind, id)
			}
			if err == nil {
				continue
			}

			sugar.Debugf("Dropping %s of session ID [%d]: %v", key, client.SessionID, err)
			if err := unsubscribe(client, key); err != nil {
				sugar.Error(err)
			}
			client.reply(Unsubscribed, frame{Action: "unsubscribe", Type: kind, ID: rawID})
		}
	}
}
