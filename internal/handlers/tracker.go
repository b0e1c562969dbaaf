package handlers

import (
	"log"
	"sync"

	"github.com/xivicWon/ssh-monitor/internal/broker"
	"github.com/xivicWon/ssh-monitor/internal/logutil"
	"github.com/xivicWon/ssh-monitor/internal/sshterminal"
)

// SessionTracker remembers which terminal sessions each WebSocket client
// opened so they can be closed when the client goes away.
type SessionTracker struct {
	cleanup func(id, reason string) bool

	mu    sync.Mutex
	owned map[string]map[string]struct{}
}

// NewSessionTracker returns a tracker that releases sessions with cleanup,
// normally (*sshterminal.Manager).Cleanup.
func NewSessionTracker(cleanup func(id, reason string) bool) *SessionTracker {
	return &SessionTracker{
		cleanup: cleanup,
		owned:   make(map[string]map[string]struct{}),
	}
}

// Track records that c owns session id. It returns false if c has already
// disconnected, in which case nothing was recorded and the caller must
// release the session itself.
func (t *SessionTracker) Track(c *broker.Client, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.Closed() {
		return false
	}
	ids, ok := t.owned[c.ID]
	if !ok {
		ids = make(map[string]struct{})
		t.owned[c.ID] = ids
	}
	ids[id] = struct{}{}
	return true
}

// Untrack forgets that clientID owns id.
func (t *SessionTracker) Untrack(clientID, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ids, ok := t.owned[clientID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(t.owned, clientID)
		}
	}
}

// Owned returns the session ids owned by clientID.
func (t *SessionTracker) Owned(clientID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.owned[clientID]))
	for id := range t.owned[clientID] {
		out = append(out, id)
	}
	return out
}

// ClientDisconnected closes every session c owned. Register it with
// (*broker.Broker).OnDisconnect.
func (t *SessionTracker) ClientDisconnected(c *broker.Client) {
	t.mu.Lock()
	ids := t.owned[c.ID]
	delete(t.owned, c.ID)
	t.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	log.Printf("[ws-tracker] client %s disconnected, cleaning up %d session(s)", c.ID, len(ids))
	for id := range ids {
		if !t.cleanup(id, sshterminal.ReasonWSDisconnected) {
			log.Printf("[ws-tracker] session %s was already closed", logutil.SanitizeForLog(id))
		}
	}
}
