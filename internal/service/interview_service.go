package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/matchmaking"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/presence"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/relay"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/session"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/websocket"
)

const persistTimeout = 5 * time.Second

// SessionStore 종료된 세션 기록 저장소
type SessionStore interface {
	Save(ctx context.Context, rec *models.SessionRecord) error
}

// EventPublisher 세션 수명 주기 이벤트를 다른 인스턴스에 전파
type EventPublisher interface {
	Publish(ctx context.Context, ev models.LifecycleEvent) error
}

// Metrics 서비스가 기록하는 지표
type Metrics interface {
	relay.Observer
	SetOnlineUsers(n int)
	SetWaitingUsers(n int)
	RecordMatch()
	RecordSessionEnded(rec models.SessionRecord)
	RecordRoleSwap(reason protocol.SwapReason)
	RecordInvalidEvent()
}

// InterviewOptions 세션 동작 설정
type InterviewOptions struct {
	RoundDuration       time.Duration
	EnforceSolverWrites bool
	InstanceID          string
}

type Option func(*InterviewService)

func WithSessionStore(store SessionStore) Option {
	return func(s *InterviewService) { s.store = store }
}

func WithPublisher(pub EventPublisher) Option {
	return func(s *InterviewService) { s.publisher = pub }
}

func WithMetrics(m Metrics) Option {
	return func(s *InterviewService) { s.metrics = m }
}

// WithRegistryOptions 세션 레지스트리 추가 옵션 (시계, room ID 생성기 등)
func WithRegistryOptions(opts ...session.RegistryOption) Option {
	return func(s *InterviewService) { s.registryOpts = append(s.registryOpts, opts...) }
}

func WithQueueOptions(opts ...matchmaking.Option) Option {
	return func(s *InterviewService) { s.queueOpts = append(s.queueOpts, opts...) }
}

// connState 연결별 상태. userID는 s.mu 아래에서만 바뀐다
type connState struct {
	conn        websocket.Conn
	userID      string
	displayName string
}

// Stats 현재 접속/대기/세션 수
type Stats struct {
	OnlineUsers    int `json:"onlineUsers"`
	WaitingUsers   int `json:"waitingUsers"`
	ActiveSessions int `json:"activeSessions"`
}

// InterviewService 연결 이벤트를 presence, 매칭 큐, 세션, 중계기로 분배
//
// 매칭 경로(find_match, cancel_search, 연결 종료)는 s.mu로 직렬화된다.
// 세션 내부 이벤트 중계는 세션 lock만 사용한다.
type InterviewService struct {
	presence    *presence.Tracker
	queue       *matchmaking.Queue
	sessions    *session.Registry
	relay       *relay.Relay
	broadcaster presence.Broadcaster

	store     SessionStore
	publisher EventPublisher
	metrics   Metrics
	opts      InterviewOptions
	logger    *zap.Logger

	registryOpts []session.RegistryOption
	queueOpts    []matchmaking.Option

	mu     sync.Mutex
	conns  map[string]*connState
	owners map[string]*connState

	background sync.WaitGroup
}

// NewInterviewService 서비스 생성. broadcaster는 모든 연결에 전송한다 (websocket.Hub)
func NewInterviewService(opts InterviewOptions, broadcaster presence.Broadcaster, logger *zap.Logger, options ...Option) *InterviewService {
	s := &InterviewService{
		broadcaster: broadcaster,
		opts:        opts,
		logger:      logger,
		conns:       make(map[string]*connState),
		owners:      make(map[string]*connState),
	}
	for _, opt := range options {
		opt(s)
	}

	s.presence = presence.NewTracker(broadcaster)
	s.queue = matchmaking.NewQueue(s.queueOpts...)

	registryOpts := append([]session.RegistryOption{
		session.WithRoundDuration(opts.RoundDuration),
		session.WithSwapHook(s.onRolesSwapped),
		session.WithEndHook(s.onSessionEnded),
	}, s.registryOpts...)
	s.sessions = session.NewRegistry(registryOpts...)

	relayOpts := []relay.Option{relay.WithSolverOnlyCode(opts.EnforceSolverWrites)}
	if s.metrics != nil {
		s.presence.OnChange(s.metrics.SetOnlineUsers)
		relayOpts = append(relayOpts, relay.WithObserver(s.metrics))
	}
	s.relay = relay.New(s.sessions, logger.Named("relay"), relayOpts...)

	return s
}

// OnConnect 연결 등록 및 presence 증가
func (s *InterviewService) OnConnect(c websocket.Conn) {
	s.mu.Lock()
	s.conns[c.ID()] = &connState{conn: c}
	s.mu.Unlock()

	s.presence.Connect(c.ID())
}

// OnDisconnect 전송 계층 종료. 명시적 종료와 같게 대기열 취소 및 세션 종료
func (s *InterviewService) OnDisconnect(c websocket.Conn) {
	s.mu.Lock()
	cs := s.conns[c.ID()]
	delete(s.conns, c.ID())

	if cs != nil && cs.userID != "" && s.owners[cs.userID] == cs {
		delete(s.owners, cs.userID)

		if s.queue.Cancel(cs.userID) {
			s.announceWaitingLocked()
		}
		if sess, ok := s.sessions.ForUser(cs.userID); ok {
			sess.End(models.EndReasonDisconnect, cs.userID)
		}
	}
	s.mu.Unlock()

	s.presence.Disconnect(c.ID())
}

// OnInvalid 잘못된 프레임은 보낸 연결에만 error 이벤트로 응답
func (s *InterviewService) OnInvalid(c websocket.Conn, err error) {
	if s.metrics != nil {
		s.metrics.RecordInvalidEvent()
	}
	s.logger.Debug("Rejected inbound event",
		zap.String("connId", c.ID()),
		zap.Error(err))
	c.Send(protocol.Error(err.Error()))
}

// OnEvent 디코딩된 이벤트 처리
func (s *InterviewService) OnEvent(c websocket.Conn, ev protocol.Event) {
	cs := s.state(c)
	if cs == nil {
		return
	}

	switch e := ev.(type) {
	case protocol.Heartbeat:
		c.Send(protocol.HeartbeatResponse())

	case protocol.JoinPool:
		s.joinPool(cs, e)

	case protocol.FindMatch:
		s.findMatch(cs, e)

	case protocol.CancelSearch:
		s.cancelSearch(cs, e)

	case protocol.SwapRoles:
		s.withMember(cs, e.Room(), func(sess *session.Session, userID string) {
			sess.SwapRoles(userID)
		})

	case protocol.DisconnectInterview:
		s.withMember(cs, e.Room(), func(sess *session.Session, userID string) {
			sess.End(models.EndReasonEndCall, userID)
		})

	case protocol.StartRound:
		s.withMember(cs, e.Room(), func(sess *session.Session, userID string) {
			sess.Broadcast(userID, protocol.NewProblem(e.Problem, e.Round))
		})

	case protocol.Relayable:
		userID, ok := s.boundUser(cs)
		if !ok {
			c.Send(protocol.Error(ErrNotJoined.Error()))
			return
		}
		s.relay.Forward(userID, e)

	default:
		s.logger.Warn("Unhandled event type", zap.String("type", string(ev.Type())))
	}
}

func (s *InterviewService) state(c websocket.Conn) *connState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[c.ID()]
}

func (s *InterviewService) boundUser(cs *connState) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cs.userID, cs.userID != ""
}

// bindLocked 연결에 사용자 식별 정보 연결
//
// 토큰으로 인증된 연결은 payload의 userId 대신 토큰의 식별 정보를 쓴다.
// 한 번 연결된 사용자는 바뀌지 않고, 표시 이름만 갱신된다.
func (s *InterviewService) bindLocked(cs *connState, userID, displayName string) error {
	if id := cs.conn.Identity(); id != nil {
		userID = id.UserID
		if displayName == "" {
			displayName = id.DisplayName
		}
	}
	if cs.userID != "" && cs.userID != userID {
		return ErrIdentityMismatch
	}
	cs.userID = userID
	if displayName != "" {
		cs.displayName = displayName
	}
	return nil
}

func (s *InterviewService) joinPool(cs *connState, e protocol.JoinPool) {
	s.mu.Lock()
	err := s.bindLocked(cs, e.UserID, e.DisplayName)
	s.mu.Unlock()
	if err != nil {
		cs.conn.Send(protocol.Error(err.Error()))
		return
	}

	cs.conn.Send(protocol.OnlineUsersCount(s.presence.Count()))
	cs.conn.Send(protocol.WaitingUsers(s.queue.Snapshot()))
}

func (s *InterviewService) findMatch(cs *connState, e protocol.FindMatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bindLocked(cs, e.UserID, e.DisplayName); err != nil {
		cs.conn.Send(protocol.Error(err.Error()))
		return
	}
	if _, busy := s.sessions.ForUser(cs.userID); busy {
		cs.conn.Send(protocol.Error(ErrAlreadyInSession.Error()))
		return
	}

	// 같은 사용자의 다른 연결이 대기 중이면 이 연결이 대신한다
	s.owners[cs.userID] = cs
	s.enqueueLocked(models.Participant{UserID: cs.userID, DisplayName: cs.displayName})
	s.announceWaitingLocked()
}

func (s *InterviewService) enqueueLocked(p models.Participant) {
	pair, matched := s.queue.Enqueue(p)
	if !matched {
		return
	}
	s.startSessionLocked(*pair)
}

// startSessionLocked 큐에서 나온 두 참가자로 세션 생성
func (s *InterviewService) startSessionLocked(pair matchmaking.Pair) {
	first, okFirst := s.owners[pair.First.UserID]
	second, okSecond := s.owners[pair.Second.UserID]
	if !okFirst || !okSecond {
		// 대기열에 있는 사용자는 항상 연결을 가진다
		s.logger.Error("Queued participant has no connection",
			zap.String("first", pair.First.UserID),
			zap.String("second", pair.Second.UserID))
		s.requeueLocked(pair, okFirst, okSecond)
		return
	}

	sess, err := s.sessions.Create(
		session.Member{Participant: pair.First.Participant(), Peer: first.conn},
		session.Member{Participant: pair.Second.Participant(), Peer: second.conn},
	)
	if err != nil {
		s.logger.Error("Failed to create session",
			zap.String("first", pair.First.UserID),
			zap.String("second", pair.Second.UserID),
			zap.Error(err))
		_, firstBusy := s.sessions.ForUser(pair.First.UserID)
		_, secondBusy := s.sessions.ForUser(pair.Second.UserID)
		s.requeueLocked(pair, !firstBusy, !secondBusy)
		return
	}

	s.logger.Info("Interview session created",
		zap.String("roomId", sess.RoomID),
		zap.String("solver", pair.First.UserID),
		zap.String("interviewer", pair.Second.UserID))

	if s.metrics != nil {
		s.metrics.RecordMatch()
	}
	s.publish(models.LifecycleEvent{
		Type:         models.LifecycleSessionStarted,
		RoomID:       sess.RoomID,
		Participants: []models.Participant{pair.First.Participant(), pair.Second.Participant()},
		At:           sess.CreatedAt,
	})
}

func (s *InterviewService) requeueLocked(pair matchmaking.Pair, first, second bool) {
	if first {
		s.enqueueLocked(pair.First.Participant())
	}
	if second {
		s.enqueueLocked(pair.Second.Participant())
	}
}

func (s *InterviewService) cancelSearch(cs *connState, e protocol.CancelSearch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs.userID == "" || s.owners[cs.userID] != cs {
		return
	}
	if id := cs.conn.Identity(); id == nil && e.UserID != cs.userID {
		cs.conn.Send(protocol.Error(ErrIdentityMismatch.Error()))
		return
	}
	if s.queue.Cancel(cs.userID) {
		s.announceWaitingLocked()
	}
}

// withMember 방에 속한 사용자일 때만 fn 실행. 알 수 없거나 종료된 방은 무시
func (s *InterviewService) withMember(cs *connState, roomID string, fn func(sess *session.Session, userID string)) {
	userID, ok := s.boundUser(cs)
	if !ok {
		cs.conn.Send(protocol.Error(ErrNotJoined.Error()))
		return
	}
	sess, ok := s.sessions.Get(roomID)
	if !ok {
		s.logger.Debug("Event for unknown room dropped", zap.String("roomId", roomID), zap.String("userId", userID))
		return
	}
	if _, member := sess.Role(userID); !member {
		s.logger.Debug("Event from non-member dropped", zap.String("roomId", roomID), zap.String("userId", userID))
		return
	}
	fn(sess, userID)
}

func (s *InterviewService) announceWaitingLocked() {
	waiting := s.queue.Snapshot()
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(protocol.WaitingUsers(waiting))
	}
	if s.metrics != nil {
		s.metrics.SetWaitingUsers(len(waiting))
	}
}

func (s *InterviewService) onRolesSwapped(sess *session.Session, reason protocol.SwapReason) {
	if s.metrics != nil {
		s.metrics.RecordRoleSwap(reason)
	}
	s.logger.Debug("Roles swapped", zap.String("roomId", sess.RoomID), zap.String("reason", string(reason)))

	parts := sess.Participants()
	s.publish(models.LifecycleEvent{
		Type:         models.LifecycleRolesSwapped,
		RoomID:       sess.RoomID,
		Participants: parts[:],
		Reason:       string(reason),
		At:           time.Now(),
	})
}

func (s *InterviewService) onSessionEnded(rec models.SessionRecord) {
	s.logger.Info("Interview session ended",
		zap.String("roomId", rec.RoomID),
		zap.String("reason", string(rec.EndReason)),
		zap.String("endedBy", rec.EndedBy),
		zap.Int("roleSwaps", rec.RoleSwaps))

	if s.metrics != nil {
		s.metrics.RecordSessionEnded(rec)
	}

	if s.store != nil {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := s.store.Save(ctx, &rec); err != nil {
				s.logger.Error("Failed to save session record", zap.String("roomId", rec.RoomID), zap.Error(err))
			}
		}()
	}

	s.publish(models.LifecycleEvent{
		Type:   models.LifecycleSessionEnded,
		RoomID: rec.RoomID,
		Participants: []models.Participant{
			{UserID: rec.SolverID, DisplayName: rec.SolverName},
			{UserID: rec.InterviewerID, DisplayName: rec.InterviewerName},
		},
		Reason: string(rec.EndReason),
		At:     rec.EndedAt,
	})
}

func (s *InterviewService) publish(ev models.LifecycleEvent) {
	if s.publisher == nil {
		return
	}
	ev.InstanceID = s.opts.InstanceID

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("Failed to publish lifecycle event",
				zap.String("type", string(ev.Type)),
				zap.String("roomId", ev.RoomID),
				zap.Error(err))
		}
	}()
}

// Stats 현재 접속/대기/세션 수
func (s *InterviewService) Stats() Stats {
	return Stats{
		OnlineUsers:    s.presence.Count(),
		WaitingUsers:   s.queue.Len(),
		ActiveSessions: s.sessions.Len(),
	}
}

// PresenceOf 사용자의 현재 presence 상태
func (s *InterviewService) PresenceOf(userID string) models.PresenceStatus {
	if _, ok := s.sessions.ForUser(userID); ok {
		return models.PresenceInSession
	}
	if s.queue.Contains(userID) {
		return models.PresenceSearching
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cs := range s.conns {
		if cs.userID == userID {
			return models.PresenceOnline
		}
	}
	return models.PresenceDisconnected
}

// Shutdown 모든 세션을 종료하고 (양쪽 모두 통보) 남은 저장/전파 작업을 기다린다
func (s *InterviewService) Shutdown(ctx context.Context) error {
	s.sessions.Shutdown()

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrShutdownIncomplete, ctx.Err())
	}
}
