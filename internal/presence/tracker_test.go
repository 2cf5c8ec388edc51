package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
	"github.com/stretchr/testify/assert"
)

type captureBroadcaster struct {
	mu     sync.Mutex
	counts []int
}

func (c *captureBroadcaster) Broadcast(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.Type == protocol.TypeOnlineUsersCount {
		c.counts = append(c.counts, msg.Payload.(int))
	}
}

func TestTracker_ConnectDisconnectBroadcasts(t *testing.T) {
	b := &captureBroadcaster{}
	tr := NewTracker(b)

	assert.Equal(t, 1, tr.Connect("c1"))
	assert.Equal(t, 2, tr.Connect("c2"))
	assert.Equal(t, 1, tr.Disconnect("c1"))

	assert.Equal(t, []int{1, 2, 1}, b.counts)
	assert.Equal(t, 1, tr.Count())
}

func TestTracker_IdempotentTransitions(t *testing.T) {
	b := &captureBroadcaster{}
	tr := NewTracker(b)

	tr.Connect("c1")
	tr.Connect("c1")
	tr.Disconnect("unknown")
	tr.Disconnect("c1")
	tr.Disconnect("c1")

	assert.Equal(t, []int{1, 0}, b.counts, "no-op transitions must not broadcast")
	assert.Equal(t, 0, tr.Count())
}

func TestTracker_OnChange(t *testing.T) {
	tr := NewTracker(nil)

	var last int
	tr.OnChange(func(n int) { last = n })

	tr.Connect("a")
	tr.Connect("b")
	assert.Equal(t, 2, last)
}

func TestTracker_Concurrent(t *testing.T) {
	b := &captureBroadcaster{}
	tr := NewTracker(b)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			tr.Connect(id)
			if i%2 == 0 {
				tr.Disconnect(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Count())
	assert.Len(t, b.counts, 150)
	assert.Equal(t, 50, b.counts[len(b.counts)-1])
}
