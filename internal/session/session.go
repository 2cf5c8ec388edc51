// Package session holds paired interview sessions and their lifecycle.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
)

var (
	ErrSessionEnded     = errors.New("session ended")
	ErrNotMember        = errors.New("not a member of this session")
	ErrNotSolver        = errors.New("only the current solver may update code")
	ErrAlreadyInSession = errors.New("participant already in an active session")
	ErrDeliveryFailed   = errors.New("delivery to partner failed")
)

// Peer 참가자에게 이벤트를 전달하는 전송 계층 핸들 (세션은 참조만 하고 소유하지 않음)
//
// Send는 블로킹하지 않아야 하며, 전달 큐에 넣지 못하면 false를 반환한다.
type Peer interface {
	Send(msg *protocol.Message) bool
}

// Member 세션에 배정될 참가자와 그 연결 핸들
type Member struct {
	models.Participant
	Peer Peer
}

type slot struct {
	Member
	role models.Role
}

// Session 두 참가자, 역할 배정, 공유 코드 버퍼를 가진 인터뷰 룸
type Session struct {
	RoomID    string
	CreatedAt time.Time

	mu       sync.Mutex
	slots    [2]*slot
	code     string
	status   models.SessionStatus
	swaps    int
	round    time.Duration
	timer    *time.Timer
	timerGen uint64
	onSwap   func(s *Session, reason protocol.SwapReason)
	onEnd    func(s *Session, rec models.SessionRecord)
	now      func() time.Time
}

func (s *Session) memberLocked(userID string) (int, bool) {
	for i, sl := range s.slots {
		if sl.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// Status 현재 상태
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Active() bool {
	return s.Status() == models.SessionActive
}

// Role 참가자의 현재 역할
func (s *Session) Role(userID string) (models.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.memberLocked(userID)
	if !ok {
		return "", false
	}
	return s.slots[i].role, true
}

// Partner 상대 참가자
func (s *Session) Partner(userID string) (models.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.memberLocked(userID)
	if !ok {
		return models.Participant{}, false
	}
	return s.slots[1-i].Participant, true
}

// Participants 두 참가자 (배정 순서)
func (s *Session) Participants() [2]models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return [2]models.Participant{s.slots[0].Participant, s.slots[1].Participant}
}

// Code 마지막으로 중계된 코드 버퍼
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func (s *Session) RoleSwaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swaps
}

// Forward 보낸 사람을 제외한 상대에게만 메시지 전달
//
// 전달은 세션 lock 아래에서 상대의 송신 큐에 들어가므로, 한 발신자의
// 이벤트 순서가 유지되고 End 이후에는 아무것도 전달되지 않는다.
func (s *Session) Forward(fromUserID string, msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.forwardLocked(fromUserID, msg)
}

// ForwardCode 코드 버퍼를 덮어쓰고 상대에게 전달 (last-writer-wins)
func (s *Session) ForwardCode(fromUserID, code string, solverOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.SessionActive {
		return ErrSessionEnded
	}
	i, ok := s.memberLocked(fromUserID)
	if !ok {
		return ErrNotMember
	}
	if solverOnly && s.slots[i].role != models.RoleSolver {
		return ErrNotSolver
	}

	s.code = code
	return s.forwardLocked(fromUserID, protocol.NewMessage(protocol.TypeCodeUpdate, protocol.CodeUpdatePayload{Code: code}))
}

func (s *Session) forwardLocked(fromUserID string, msg *protocol.Message) error {
	if s.status != models.SessionActive {
		return ErrSessionEnded
	}
	i, ok := s.memberLocked(fromUserID)
	if !ok {
		return ErrNotMember
	}
	if !s.slots[1-i].Peer.Send(msg) {
		return ErrDeliveryFailed
	}
	return nil
}

// Broadcast 두 참가자 모두에게 전달 (보낸 사람은 멤버여야 함)
func (s *Session) Broadcast(fromUserID string, msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.SessionActive {
		return ErrSessionEnded
	}
	if _, ok := s.memberLocked(fromUserID); !ok {
		return ErrNotMember
	}
	for _, sl := range s.slots {
		sl.Peer.Send(msg)
	}
	return nil
}

// SwapRoles 사용자 요청에 의한 역할 교대
func (s *Session) SwapRoles(byUserID string) error {
	s.mu.Lock()
	if s.status != models.SessionActive {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	if _, ok := s.memberLocked(byUserID); !ok {
		s.mu.Unlock()
		return ErrNotMember
	}
	s.swapLocked(protocol.SwapReasonRequest)
	onSwap := s.onSwap
	s.mu.Unlock()

	if onSwap != nil {
		onSwap(s, protocol.SwapReasonRequest)
	}
	return nil
}

// roundExpired 라운드 타이머 만료. 같은 전이를 다른 트리거로 실행
func (s *Session) roundExpired(gen uint64) {
	s.mu.Lock()
	if s.status != models.SessionActive || gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.swapLocked(protocol.SwapReasonTimer)
	onSwap := s.onSwap
	s.mu.Unlock()

	if onSwap != nil {
		onSwap(s, protocol.SwapReasonTimer)
	}
}

func (s *Session) swapLocked(reason protocol.SwapReason) {
	for i := range s.slots {
		s.slots[i].role = s.slots[i].role.Opposite()
	}
	s.swaps++
	for _, sl := range s.slots {
		sl.Peer.Send(protocol.RolesSwapped(sl.role, reason))
	}
	s.restartTimerLocked()
}

func (s *Session) restartTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	if s.round <= 0 {
		return
	}
	gen := s.timerGen
	s.timer = time.AfterFunc(s.round, func() { s.roundExpired(gen) })
}

// End 세션 종료 (흡수 상태). 이미 종료된 경우 false
//
// byUserID가 멤버이면 상대에게만, 비어 있으면 (서버 종료 등) 양쪽 모두에게
// partner_disconnected를 정확히 한 번 보낸다.
func (s *Session) End(reason models.EndReason, byUserID string) (models.SessionRecord, bool) {
	s.mu.Lock()
	if s.status != models.SessionActive {
		s.mu.Unlock()
		return models.SessionRecord{}, false
	}

	s.status = models.SessionEnded
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++

	msg := protocol.PartnerDisconnected(reason)
	for _, sl := range s.slots {
		if sl.UserID != byUserID {
			sl.Peer.Send(msg)
		}
	}

	rec := s.recordLocked(reason, byUserID)
	onEnd := s.onEnd
	s.mu.Unlock()

	if onEnd != nil {
		onEnd(s, rec)
	}
	return rec, true
}

func (s *Session) recordLocked(reason models.EndReason, byUserID string) models.SessionRecord {
	// slots[0]은 항상 처음 solver로 배정된 참가자
	solver, interviewer := s.slots[0], s.slots[1]
	return models.SessionRecord{
		RoomID:          s.RoomID,
		SolverID:        solver.UserID,
		SolverName:      solver.DisplayName,
		InterviewerID:   interviewer.UserID,
		InterviewerName: interviewer.DisplayName,
		StartedAt:       s.CreatedAt,
		EndedAt:         s.now(),
		EndReason:       reason,
		EndedBy:         byUserID,
		RoleSwaps:       s.swaps,
		FinalCode:       s.code,
	}
}
