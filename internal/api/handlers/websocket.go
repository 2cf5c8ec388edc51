package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/api/middleware"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/websocket"
)

// WebSocketHandler WebSocket 연결 처리
type WebSocketHandler struct {
	hub *websocket.Hub
}

// NewWebSocketHandler WebSocketHandler 생성
func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// HandleWebSocket WebSocket 연결 엔드포인트
//
// 토큰으로 인증된 연결은 그 식별 정보로 고정되고, 익명 연결은
// join_interview_pool/find_match의 userId를 사용한다.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.hub.ServeWs(c.Writer, c.Request, middleware.Identity(c))
}
