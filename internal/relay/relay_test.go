package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/session"
)

type chanPeer struct {
	ch chan *protocol.Message
}

func newChanPeer(size int) *chanPeer {
	return &chanPeer{ch: make(chan *protocol.Message, size)}
}

func (p *chanPeer) Send(msg *protocol.Message) bool {
	select {
	case p.ch <- msg:
		return true
	default:
		return false
	}
}

func (p *chanPeer) drain() []*protocol.Message {
	var out []*protocol.Message
	for {
		select {
		case m := <-p.ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[Outcome]int
}

func (o *countingObserver) ObserveRelay(_ protocol.Type, outcome Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[Outcome]int)
	}
	o.counts[outcome]++
}

func setup(t *testing.T, opts ...Option) (*Relay, *session.Session, *chanPeer, *chanPeer) {
	t.Helper()

	reg := session.NewRegistry()
	alice, bob := newChanPeer(1024), newChanPeer(1024)
	s, err := reg.Create(
		session.Member{Participant: models.Participant{UserID: "u1", DisplayName: "Alice"}, Peer: alice},
		session.Member{Participant: models.Participant{UserID: "u2", DisplayName: "Bob"}, Peer: bob},
	)
	require.NoError(t, err)
	alice.drain()
	bob.drain()

	return New(reg, zap.NewNop(), opts...), s, alice, bob
}

func room(id string) protocol.RoomRef {
	return protocol.RoomRef{RoomID: id}
}

func TestRelay_CodeUpdateReachesOnlyPartner(t *testing.T) {
	r, s, alice, bob := setup(t, WithSolverOnlyCode(true))

	out := r.Forward("u1", protocol.CodeUpdate{RoomRef: room(s.RoomID), Code: "print(1)"})
	assert.Equal(t, Delivered, out)

	got := bob.drain()
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeCodeUpdate, got[0].Type)
	assert.Equal(t, "print(1)", got[0].Payload.(protocol.CodeUpdatePayload).Code)
	assert.Empty(t, alice.drain())
}

func TestRelay_InterviewerCodeDroppedWhenEnforced(t *testing.T) {
	obs := &countingObserver{}
	r, s, alice, _ := setup(t, WithSolverOnlyCode(true), WithObserver(obs))

	out := r.Forward("u2", protocol.CodeUpdate{RoomRef: room(s.RoomID), Code: "oops"})
	assert.Equal(t, DroppedNotSolver, out)
	assert.Empty(t, alice.drain())
	assert.Equal(t, 1, obs.counts[DroppedNotSolver])
}

func TestRelay_ChatAndVoiceStatus(t *testing.T) {
	r, s, alice, bob := setup(t)

	muted := true
	r.Forward("u2", protocol.SendMessage{RoomRef: room(s.RoomID), DisplayName: "Bob", Text: "hello", Timestamp: "t1"})
	r.Forward("u2", protocol.VoiceMuteStatus{RoomRef: room(s.RoomID), IsMuted: &muted, DisplayName: "Bob"})

	got := alice.drain()
	require.Len(t, got, 2)
	assert.Equal(t, protocol.TypeReceiveMessage, got[0].Type)
	assert.Equal(t, protocol.ReceiveMessagePayload{DisplayName: "Bob", Text: "hello", Timestamp: "t1"}, got[0].Payload)
	assert.Equal(t, protocol.TypePartnerMuteStatus, got[1].Type)
	assert.Empty(t, bob.drain())
}

func TestRelay_UnknownRoomDroppedSilently(t *testing.T) {
	r, _, alice, bob := setup(t)

	out := r.Forward("u1", protocol.TypingStart{RoomRef: room("interview_missing")})
	assert.Equal(t, DroppedStale, out)
	assert.Empty(t, alice.drain())
	assert.Empty(t, bob.drain())
}

func TestRelay_EndedRoomDropsLaggingEvents(t *testing.T) {
	r, s, _, bob := setup(t)

	s.End(models.EndReasonEndCall, "u1")
	disconnect := bob.drain()
	require.Len(t, disconnect, 1)
	assert.Equal(t, protocol.TypePartnerDisconnected, disconnect[0].Type)

	out := r.Forward("u1", protocol.CodeUpdate{RoomRef: room(s.RoomID), Code: "late"})
	assert.Equal(t, DroppedStale, out)
	assert.Empty(t, bob.drain())
}

func TestRelay_StrangerCannotInject(t *testing.T) {
	r, s, alice, bob := setup(t)

	out := r.Forward("u9", protocol.SendMessage{RoomRef: room(s.RoomID), Text: "spam"})
	assert.Equal(t, DroppedNotMember, out)
	assert.Empty(t, alice.drain())
	assert.Empty(t, bob.drain())
}

func TestRelay_PerSenderFIFOUnderConcurrency(t *testing.T) {
	r, s, alice, bob := setup(t, WithSolverOnlyCode(false))

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			r.Forward("u1", protocol.SendMessage{RoomRef: room(s.RoomID), Text: string(rune('a' + i%26)), Timestamp: itoa(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			r.Forward("u2", protocol.SendMessage{RoomRef: room(s.RoomID), Text: "x", Timestamp: itoa(i)})
		}
	}()
	wg.Wait()

	for _, msgs := range [][]*protocol.Message{bob.drain(), alice.drain()} {
		require.Len(t, msgs, n)
		for i, m := range msgs {
			assert.Equal(t, itoa(i), m.Payload.(protocol.ReceiveMessagePayload).Timestamp)
		}
	}
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for ; i > 0; i /= 10 {
		b = append([]byte{digits[i%10]}, b...)
	}
	return string(b)
}
