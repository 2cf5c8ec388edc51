package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
)

// Conn 핸들러가 보는 클라이언트 연결
type Conn interface {
	ID() string
	// Identity 토큰으로 인증된 경우의 참가자 정보 (없으면 nil)
	Identity() *models.Participant
	// Send 블로킹하지 않음. 송신 큐가 가득 차면 연결을 닫고 false
	Send(msg *protocol.Message) bool
}

// Handler 연결 수명 주기와 수신 이벤트 처리
//
// 한 연결의 OnEvent 호출은 그 연결의 읽기 고루틴에서 순서대로 일어난다.
type Handler interface {
	OnConnect(c Conn)
	OnEvent(c Conn, ev protocol.Event)
	OnInvalid(c Conn, err error)
	OnDisconnect(c Conn)
}

// Hub WebSocket 연결 관리 및 브로드캐스트
type Hub struct {
	// 연결별 클라이언트 저장 (connID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	// 브로드캐스트 채널
	broadcast chan *protocol.Message

	// 등록/해제 채널
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	handler Handler
	config  HubConfig
	logger  *zap.Logger
}

// HubConfig 연결별 송신 버퍼와 수신 이벤트 제한
type HubConfig struct {
	SendBufferSize  int
	EventsPerSecond int
	CheckOrigin     func(r *http.Request) bool
}

// NewHub Hub 생성. Run 이전에 SetHandler로 핸들러를 연결해야 한다
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *protocol.Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     config,
		logger:     logger,
	}
}

// SetHandler 핸들러 연결 (Run 이전에만 호출)
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Run Hub 실행. ctx가 끝나면 모든 연결의 송신 큐를 닫고 반환
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for id, client := range h.clients {
			client.closeSend()
			delete(h.clients, id)
		}
		h.logger.Info("WebSocket hub stopped")
	})
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.id] = client
	h.logger.Debug("WebSocket client registered",
		zap.String("connId", client.id),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.id]; exists {
		delete(h.clients, client.id)
		client.closeSend()
		h.logger.Debug("WebSocket client unregistered",
			zap.String("connId", client.id),
			zap.Int("totalClients", len(h.clients)))
	}
}

// broadcastMessage 모든 연결에 전송. 가득 찬 연결은 Send가 닫는다
func (h *Hub) broadcastMessage(message *protocol.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.Send(message)
	}
}

// Broadcast 모든 연결에 메시지 전송 (presence.Broadcaster)
func (h *Hub) Broadcast(msg *protocol.Message) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Count 등록된 연결 수
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs WebSocket 연결 업그레이드 및 클라이언트 시작
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, identity *models.Participant) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := newClient(h, conn, uuid.New().String(), identity)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	h.handler.OnConnect(client)

	// 고루틴 시작
	go client.writePump()
	go client.readPump()
}
