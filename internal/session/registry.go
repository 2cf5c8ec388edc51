package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
)

const roomPrefix = "interview_"

// Registry room ID → 세션, 사용자 ID → room ID 색인
type Registry struct {
	mu     sync.RWMutex
	byRoom map[string]*Session
	byUser map[string]string

	round     time.Duration
	onSwap    func(s *Session, reason protocol.SwapReason)
	onEnd     func(rec models.SessionRecord)
	newRoomID func() string
	now       func() time.Time
}

type RegistryOption func(*Registry)

// WithRoundDuration 라운드 타이머 길이 (0이면 비활성화)
func WithRoundDuration(d time.Duration) RegistryOption {
	return func(r *Registry) { r.round = d }
}

// WithSwapHook 역할 교대 후 호출 (요청/타이머 모두)
func WithSwapHook(fn func(s *Session, reason protocol.SwapReason)) RegistryOption {
	return func(r *Registry) { r.onSwap = fn }
}

// WithEndHook 세션이 색인에서 제거된 후 호출
func WithEndHook(fn func(rec models.SessionRecord)) RegistryOption {
	return func(r *Registry) { r.onEnd = fn }
}

func WithRoomIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) { r.newRoomID = fn }
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byRoom:    make(map[string]*Session),
		byUser:    make(map[string]string),
		newRoomID: func() string { return roomPrefix + uuid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create 두 참가자로 active 세션 생성
//
// first는 solver, second는 interviewer로 배정되고, 다른 스레드가 세션을
// 볼 수 있기 전에 양쪽에 match_found가 전달된다.
func (r *Registry) Create(first, second Member) (*Session, error) {
	r.mu.Lock()

	for _, m := range []Member{first, second} {
		if s := r.activeForUserLocked(m.UserID); s != nil {
			r.mu.Unlock()
			return nil, ErrAlreadyInSession
		}
	}

	roomID := r.newRoomID()
	for _, exists := r.byRoom[roomID]; exists; _, exists = r.byRoom[roomID] {
		roomID = r.newRoomID()
	}

	s := &Session{
		RoomID:    roomID,
		CreatedAt: r.now(),
		slots: [2]*slot{
			{Member: first, role: models.RoleSolver},
			{Member: second, role: models.RoleInterviewer},
		},
		status: models.SessionActive,
		round:  r.round,
		onSwap: r.onSwap,
		onEnd:  r.remove,
		now:    r.now,
	}

	s.mu.Lock()
	r.byRoom[roomID] = s
	r.byUser[first.UserID] = roomID
	r.byUser[second.UserID] = roomID
	r.mu.Unlock()

	first.Peer.Send(protocol.MatchFound(roomID, second.Participant, models.RoleSolver))
	second.Peer.Send(protocol.MatchFound(roomID, first.Participant, models.RoleInterviewer))
	s.restartTimerLocked()
	s.mu.Unlock()

	return s, nil
}

func (r *Registry) activeForUserLocked(userID string) *Session {
	roomID, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	s := r.byRoom[roomID]
	if s == nil || !s.Active() {
		return nil
	}
	return s
}

// Get room ID로 세션 조회 (종료된 세션은 조회되지 않음)
func (r *Registry) Get(roomID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byRoom[roomID]
	return s, ok
}

// ForUser 사용자가 속한 active 세션
func (r *Registry) ForUser(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.activeForUserLocked(userID)
	return s, s != nil
}

// Len active 세션 수
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoom)
}

// Shutdown 모든 세션 종료 (양쪽 모두 통보)
func (r *Registry) Shutdown() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byRoom))
	for _, s := range r.byRoom {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.End(models.EndReasonShutdown, "")
	}
}

func (r *Registry) remove(s *Session, rec models.SessionRecord) {
	r.mu.Lock()
	if r.byRoom[s.RoomID] == s {
		delete(r.byRoom, s.RoomID)
	}
	for _, p := range []string{rec.SolverID, rec.InterviewerID} {
		if r.byUser[p] == s.RoomID {
			delete(r.byUser, p)
		}
	}
	r.mu.Unlock()

	if r.onEnd != nil {
		r.onEnd(rec)
	}
}
