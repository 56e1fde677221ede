package hub

import (
	"sync"
)

// LocalPubSub fans events out to the sessions of this process when there is no redis.
// Both directions are indexed so a closing session drops its topics without scanning.
type LocalPubSub struct {
	mutex    sync.RWMutex
	sessions map[string]map[int64]struct{}
	topics   map[int64]map[string]struct{}
}

func newLocalPubSub() *LocalPubSub {
	return &LocalPubSub{
		sessions: make(map[string]map[int64]struct{}),
		topics:   make(map[int64]map[string]struct{}),
	}
}

func (ps *LocalPubSub) Subscribe(topic string, sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if ps.sessions[topic] == nil {
		ps.sessions[topic] = make(map[int64]struct{})
	}
	ps.sessions[topic][sessionID] = struct{}{}

	if ps.topics[sessionID] == nil {
		ps.topics[sessionID] = make(map[string]struct{})
	}
	ps.topics[sessionID][topic] = struct{}{}
}

// remove expects the write lock to be held. Empty sets are dropped from both indexes.
func (ps *LocalPubSub) remove(topic string, sessionID int64) {
	if sessions, ok := ps.sessions[topic]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(ps.sessions, topic)
		}
	}
	if topics, ok := ps.topics[sessionID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(ps.topics, sessionID)
		}
	}
}

func (ps *LocalPubSub) Unsubscribe(topic string, sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.remove(topic, sessionID)
}

func (ps *LocalPubSub) UnsubscribeFromAll(sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	for topic := range ps.topics[sessionID] {
		ps.remove(topic, sessionID)
	}
}

func (ps *LocalPubSub) Subscribers(topic string) int {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	return len(ps.sessions[topic])
}

func (ps *LocalPubSub) Publish(topic string, message string) {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	for sessionID := range ps.sessions[topic] {
		client, exists := GetClient(sessionID)
		if !exists {
			// the session closed between unsubscribing and this publish
			sugar.Debugf("Session ID [%d] is gone, skipping %s", sessionID, topic)
			continue
		}
		client.deliver(message)
	}
}
