// Package presence counts connected participants and announces changes.
package presence

import (
	"sync"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
)

// Broadcaster delivers a message to every connected participant without
// blocking.
type Broadcaster interface {
	Broadcast(msg *protocol.Message)
}

// Tracker holds the set of live connection IDs. The count is always derived
// from the set, never stored separately.
type Tracker struct {
	mu          sync.Mutex
	connections map[string]struct{}
	broadcaster Broadcaster
	onChange    func(count int)
}

func NewTracker(b Broadcaster) *Tracker {
	return &Tracker{
		connections: make(map[string]struct{}),
		broadcaster: b,
	}
}

// OnChange registers a callback invoked with the new count (used for metrics).
func (t *Tracker) OnChange(fn func(count int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Connect adds a connection. Re-adding a known id changes nothing.
func (t *Tracker) Connect(connID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.connections[connID]; ok {
		return len(t.connections)
	}
	t.connections[connID] = struct{}{}
	t.announceLocked()
	return len(t.connections)
}

// Disconnect removes a connection. Unknown ids are ignored.
func (t *Tracker) Disconnect(connID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.connections[connID]; !ok {
		return len(t.connections)
	}
	delete(t.connections, connID)
	t.announceLocked()
	return len(t.connections)
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connections)
}

// announceLocked runs under the tracker lock so counts go out in the order
// they were produced.
func (t *Tracker) announceLocked() {
	n := len(t.connections)
	if t.broadcaster != nil {
		t.broadcaster.Broadcast(protocol.OnlineUsersCount(n))
	}
	if t.onChange != nil {
		t.onChange(n)
	}
}
