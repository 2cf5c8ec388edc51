// Package interviewclient is the participant side of the interview protocol:
// a session state machine and a WebSocket connection that feeds it.
package interviewclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotSolver         = errors.New("only the solver edits code")
)

type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StateActive    State = "active"
)

const systemSender = "System"

// ChatLine 채팅 기록 한 줄. System이면 상태 변화 안내
type ChatLine struct {
	From   string    `json:"from"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
	System bool      `json:"system,omitempty"`
}

// View 상태 머신의 읽기 전용 스냅샷
type View struct {
	State       State
	RoomID      string
	Partner     *models.Participant
	Role        models.Role
	Code        string
	Chat        []ChatLine
	Problem     json.RawMessage
	Round       int
	RoundEndsAt time.Time
	OnlineUsers int
	Waiting     []models.QueueEntry
	LastError   string
}

type Option func(*Machine)

// WithRoundDuration 클라이언트 표시용 라운드 카운트다운 길이 (0이면 표시 안 함)
func WithRoundDuration(d time.Duration) Option {
	return func(m *Machine) { m.round = d }
}

// WithSolverOnlyEdits interviewer의 로컬 코드 편집 거부
func WithSolverOnlyEdits(enabled bool) Option {
	return func(m *Machine) { m.solverOnly = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// Machine idle → searching → active → idle
//
// 보낼 이벤트를 반환할 뿐 직접 전송하지 않는다. 잘못된 전이는
// ErrInvalidTransition을 반환하고 상태를 바꾸지 않는다.
type Machine struct {
	mu   sync.Mutex
	self models.Participant

	state       State
	roomID      string
	partner     *models.Participant
	role        models.Role
	code        string
	chat        []ChatLine
	problem     json.RawMessage
	roundNo     int
	roundEndsAt time.Time
	onlineUsers int
	waiting     []models.QueueEntry
	lastError   string

	round      time.Duration
	solverOnly bool
	now        func() time.Time
	logger     *zap.Logger
}

func NewMachine(self models.Participant, opts ...Option) *Machine {
	m := &Machine{
		self:       self,
		state:      StateIdle,
		solverOnly: true,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View 현재 상태 복사본
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		State:       m.state,
		RoomID:      m.roomID,
		Role:        m.role,
		Code:        m.code,
		Chat:        append([]ChatLine(nil), m.chat...),
		Problem:     m.problem,
		Round:       m.roundNo,
		RoundEndsAt: m.roundEndsAt,
		OnlineUsers: m.onlineUsers,
		Waiting:     append([]models.QueueEntry(nil), m.waiting...),
		LastError:   m.lastError,
	}
	if m.partner != nil {
		p := *m.partner
		v.Partner = &p
	}
	return v
}

// TimeLeft 라운드 남은 시간 (타이머가 없으면 0)
func (m *Machine) TimeLeft() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roundEndsAt.IsZero() {
		return 0
	}
	if left := m.roundEndsAt.Sub(m.now()); left > 0 {
		return left
	}
	return 0
}

// Join 대기 풀 참여 (상태 변화 없음)
func (m *Machine) Join() protocol.JoinPool {
	return protocol.JoinPool{UserID: m.self.UserID, DisplayName: m.self.DisplayName}
}

// FindMatch idle → searching
func (m *Machine) FindMatch() (protocol.FindMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return protocol.FindMatch{}, m.invalidLocked("find_match")
	}
	m.state = StateSearching
	return protocol.FindMatch{UserID: m.self.UserID, DisplayName: m.self.DisplayName}, nil
}

// CancelSearch searching → idle
func (m *Machine) CancelSearch() (protocol.CancelSearch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSearching {
		return protocol.CancelSearch{}, m.invalidLocked("cancel_search")
	}
	m.state = StateIdle
	return protocol.CancelSearch{UserID: m.self.UserID}, nil
}

// EndCall active → idle. 상대에게는 서버가 partner_disconnected를 보낸다
func (m *Machine) EndCall() (protocol.DisconnectInterview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return protocol.DisconnectInterview{}, m.invalidLocked("disconnect_interview")
	}
	ev := protocol.DisconnectInterview{RoomRef: protocol.RoomRef{RoomID: m.roomID}}
	m.resetLocked("You ended the interview.")
	return ev, nil
}

// RequestSwap 역할 교대 요청. 실제 교대는 roles_swapped 수신 시 반영
func (m *Machine) RequestSwap() (protocol.SwapRoles, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return protocol.SwapRoles{}, m.invalidLocked("swap_roles")
	}
	return protocol.SwapRoles{RoomRef: protocol.RoomRef{RoomID: m.roomID}}, nil
}

// EditCode 로컬 편집을 반영하고 상대에게 보낼 code_update 반환
func (m *Machine) EditCode(code string) (protocol.CodeUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return protocol.CodeUpdate{}, m.invalidLocked("code_update")
	}
	if m.solverOnly && m.role != models.RoleSolver {
		return protocol.CodeUpdate{}, ErrNotSolver
	}
	m.code = code
	return protocol.CodeUpdate{RoomRef: protocol.RoomRef{RoomID: m.roomID}, Code: code}, nil
}

// SendMessage 내 채팅을 기록하고 상대에게 보낼 이벤트 반환
func (m *Machine) SendMessage(text string) (protocol.SendMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return protocol.SendMessage{}, m.invalidLocked("send_message")
	}
	now := m.now()
	m.chat = append(m.chat, ChatLine{From: m.self.DisplayName, Text: text, At: now})
	return protocol.SendMessage{
		RoomRef:     protocol.RoomRef{RoomID: m.roomID},
		DisplayName: m.self.DisplayName,
		Text:        text,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}, nil
}

// StartRound 새 문제로 라운드 시작 (양쪽 모두 new_problem 수신)
func (m *Machine) StartRound(problem json.RawMessage) (protocol.StartRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return protocol.StartRound{}, m.invalidLocked("start_round")
	}
	return protocol.StartRound{
		RoomRef: protocol.RoomRef{RoomID: m.roomID},
		Problem: problem,
		Round:   m.roundNo + 1,
	}, nil
}

// HandleMatchFound searching → active. 다른 상태에서는 반영하지 않고 false
//
// idle에서 받은 match_found는 취소가 서버에 닿기 전에 이미 짝지어진 경우다.
// 서버 세션은 남아 있으므로 그 방을 나가는 disconnect_interview를 함께 돌려준다.
func (m *Machine) HandleMatchFound(p protocol.MatchFoundPayload) (bool, protocol.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		m.logger.Info("Leaving room matched after cancel", zap.String("roomId", p.RoomID))
		return false, protocol.DisconnectInterview{RoomRef: protocol.RoomRef{RoomID: p.RoomID}}
	case StateActive:
		m.logger.Warn("Ignoring match_found while in a session",
			zap.String("roomId", m.roomID),
			zap.String("matchedRoomId", p.RoomID))
		return false, nil
	}

	partner := p.Partner
	m.state = StateActive
	m.roomID = p.RoomID
	m.partner = &partner
	m.role = p.Role
	m.code = ""
	m.chat = nil
	m.restartRoundLocked()

	m.systemLocked(fmt.Sprintf("You've been matched with %s!", displayName(partner)))
	m.systemLocked(fmt.Sprintf("Your role: %s", roleLabel(p.Role)))
	return true, nil
}

// HandlePartnerDisconnected active → idle
func (m *Machine) HandlePartnerDisconnected(p protocol.PartnerDisconnectedPayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return false
	}
	switch p.Reason {
	case models.EndReasonShutdown:
		m.resetLocked("The interview server is restarting. Returning to matching screen...")
	default:
		m.resetLocked("Your partner has disconnected. Returning to matching screen...")
	}
	return true
}

// HandleTransportLost 서버 연결이 끊기면 어느 상태에서든 idle
func (m *Machine) HandleTransportLost() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateActive:
		m.resetLocked("Connection to the interview server was lost.")
	case StateSearching:
		m.state = StateIdle
	}
}

func (m *Machine) HandleRolesSwapped(p protocol.RolesSwappedPayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || !p.NewRole.Valid() {
		return false
	}
	m.role = p.NewRole
	m.restartRoundLocked()

	prefix := "Roles swapped!"
	if p.Reason == protocol.SwapReasonTimer {
		prefix = "Time's up, roles swapped!"
	}
	m.systemLocked(fmt.Sprintf("%s You are now the %s", prefix, roleLabel(p.NewRole)))
	return true
}

func (m *Machine) HandleCodeUpdate(p protocol.CodeUpdatePayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return false
	}
	m.code = p.Code
	return true
}

func (m *Machine) HandleMessage(p protocol.ReceiveMessagePayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return false
	}
	at, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		at = m.now()
	}
	m.chat = append(m.chat, ChatLine{From: p.DisplayName, Text: p.Text, At: at})
	return true
}

func (m *Machine) HandleMuteStatus(p protocol.PartnerMuteStatusPayload) bool {
	state := "unmuted"
	if p.IsMuted {
		state = "muted"
	}
	return m.activeSystemLine(fmt.Sprintf("%s %s their microphone", p.DisplayName, state))
}

func (m *Machine) HandleDeafenStatus(p protocol.PartnerDeafenStatusPayload) bool {
	state := "enabled"
	if p.IsDeafened {
		state = "disabled"
	}
	return m.activeSystemLine(fmt.Sprintf("%s %s their audio", p.DisplayName, state))
}

func (m *Machine) HandleNewProblem(p protocol.NewProblemPayload) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return false
	}
	m.problem = p.Problem
	m.roundNo = p.Round
	m.code = ""
	m.restartRoundLocked()
	m.systemLocked(fmt.Sprintf("Round %d started.", p.Round))
	return true
}

func (m *Machine) HandleOnlineUsers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onlineUsers = n
}

func (m *Machine) HandleWaitingUsers(entries []models.QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting = entries
}

// HandleError 검색 중 받은 오류는 매칭 화면으로 되돌리고, 서버에 남았을 수 있는 대기열 항목을 취소한다
func (m *Machine) HandleError(p protocol.ErrorPayload) protocol.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = p.Message
	if m.state != StateSearching {
		return nil
	}
	m.state = StateIdle
	m.systemLocked(fmt.Sprintf("Search stopped: %s", p.Message))
	return protocol.CancelSearch{UserID: m.self.UserID}
}

func (m *Machine) activeSystemLine(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return false
	}
	m.systemLocked(text)
	return true
}

// resetLocked active 상태를 모두 지우고 idle로. 채팅에는 이유 한 줄만 남는다
func (m *Machine) resetLocked(reason string) {
	m.state = StateIdle
	m.roomID = ""
	m.partner = nil
	m.role = ""
	m.code = ""
	m.problem = nil
	m.roundNo = 0
	m.roundEndsAt = time.Time{}
	m.chat = nil
	m.systemLocked(reason)
}

func (m *Machine) restartRoundLocked() {
	if m.round <= 0 {
		return
	}
	m.roundEndsAt = m.now().Add(m.round)
}

func (m *Machine) systemLocked(text string) {
	m.chat = append(m.chat, ChatLine{From: systemSender, Text: text, At: m.now(), System: true})
}

func (m *Machine) invalidLocked(action string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, m.state)
}

func displayName(p models.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserID
}

func roleLabel(r models.Role) string {
	if r == models.RoleSolver {
		return "Problem Solver"
	}
	return "Interviewer"
}
