package interviewclient

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/service"
)

// machinePeer 서버 쪽 연결 대신 Machine을 붙인다. 받은 프레임은 deliver 전까지 쌓아 둔다
type machinePeer struct {
	id      string
	machine *Machine

	mu     sync.Mutex
	frames [][]byte
}

func (p *machinePeer) ID() string                    { return p.id }
func (p *machinePeer) Identity() *models.Participant { return nil }

func (p *machinePeer) Send(msg *protocol.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	p.mu.Lock()
	p.frames = append(p.frames, data)
	p.mu.Unlock()
	return true
}

type peerHub struct {
	peers []*machinePeer
}

func (h *peerHub) Broadcast(msg *protocol.Message) {
	for _, p := range h.peers {
		p.Send(msg)
	}
}

type resyncHarness struct {
	t   *testing.T
	svc *service.InterviewService
}

func newResyncHarness(t *testing.T, peers ...*machinePeer) *resyncHarness {
	t.Helper()
	svc := service.NewInterviewService(service.InterviewOptions{EnforceSolverWrites: true}, &peerHub{peers: peers}, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Shutdown(ctx)
	})
	for _, p := range peers {
		svc.OnConnect(p)
	}
	return &resyncHarness{t: t, svc: svc}
}

// deliver 쌓인 프레임을 Machine에 반영하고, Machine이 돌려준 이벤트를 서버로 보낸다
func (h *resyncHarness) deliver(p *machinePeer) {
	h.t.Helper()
	p.mu.Lock()
	frames := p.frames
	p.frames = nil
	p.mu.Unlock()

	for _, f := range frames {
		reply, err := p.machine.Apply(f)
		require.NoError(h.t, err)
		if reply != nil {
			h.svc.OnEvent(p, reply)
		}
	}
}

func newPeer(id string, self models.Participant) *machinePeer {
	return &machinePeer{id: id, machine: NewMachine(self)}
}

func TestCancelRacingMatchLeavesNoOrphanSession(t *testing.T) {
	a := newPeer("c1", models.Participant{UserID: "u1", DisplayName: "Alice"})
	b := newPeer("c2", models.Participant{UserID: "u2", DisplayName: "Bob"})
	h := newResyncHarness(t, a, b)

	find, err := a.machine.FindMatch()
	require.NoError(t, err)
	h.svc.OnEvent(a, find)

	find, err = b.machine.FindMatch()
	require.NoError(t, err)
	h.svc.OnEvent(b, find)
	require.Equal(t, 1, h.svc.Stats().ActiveSessions)

	// Alice가 취소했지만 서버는 이미 짝지었다
	cancel, err := a.machine.CancelSearch()
	require.NoError(t, err)
	h.svc.OnEvent(a, cancel)
	require.Equal(t, 1, h.svc.Stats().ActiveSessions)

	h.deliver(a)
	h.deliver(b)

	assert.Equal(t, StateIdle, a.machine.State())
	assert.Equal(t, StateIdle, b.machine.State(), "partner returned to matching screen")
	assert.Contains(t, b.machine.View().Chat[0].Text, "partner has disconnected")
	assert.Equal(t, 0, h.svc.Stats().ActiveSessions)
	assert.Equal(t, models.PresenceOnline, h.svc.PresenceOf("u2"))

	// 다시 검색 가능
	find, err = a.machine.FindMatch()
	require.NoError(t, err)
	h.svc.OnEvent(a, find)
	h.deliver(a)

	assert.Equal(t, StateSearching, a.machine.State())
	assert.Empty(t, a.machine.View().LastError)
	assert.Equal(t, models.PresenceSearching, h.svc.PresenceOf("u1"))
}

func TestRejectedSearchReturnsToIdle(t *testing.T) {
	a := newPeer("c1", models.Participant{UserID: "u1", DisplayName: "Alice"})
	b := newPeer("c2", models.Participant{UserID: "u2", DisplayName: "Bob"})
	h := newResyncHarness(t, a, b)

	for _, p := range []*machinePeer{a, b} {
		find, err := p.machine.FindMatch()
		require.NoError(t, err)
		h.svc.OnEvent(p, find)
	}

	// 세션 중인 사용자가 다른 클라이언트 상태로 다시 검색하면 서버가 거절한다
	stale := NewMachine(models.Participant{UserID: "u1", DisplayName: "Alice"})
	find, err := stale.FindMatch()
	require.NoError(t, err)
	a.machine = stale
	a.mu.Lock()
	a.frames = nil
	a.mu.Unlock()

	h.svc.OnEvent(a, find)
	h.deliver(a)

	assert.Equal(t, StateIdle, stale.State())
	assert.Equal(t, service.ErrAlreadyInSession.Error(), stale.View().LastError)
	assert.Equal(t, 1, h.svc.Stats().ActiveSessions, "cancel after a match never undoes it")
}
