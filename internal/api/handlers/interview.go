package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/api/middleware"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/service"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/logger"
)

// ClusterStats 여러 인스턴스에 걸친 세션 수 (Redis)
type ClusterStats interface {
	ActiveSessions(ctx context.Context) (int64, error)
}

// SessionHistory 종료된 세션 기록 조회 (PostgreSQL)
type SessionHistory interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SessionRecord, error)
}

// InterviewHandler 인터뷰 풀 조회 API
type InterviewHandler struct {
	interviews *service.InterviewService
	cluster    ClusterStats
	history    SessionHistory
}

func NewInterviewHandler(interviews *service.InterviewService, cluster ClusterStats, history SessionHistory) *InterviewHandler {
	return &InterviewHandler{
		interviews: interviews,
		cluster:    cluster,
		history:    history,
	}
}

// GetStats 현재 접속자, 대기자, 진행 중인 세션 수
func (h *InterviewHandler) GetStats(c *gin.Context) {
	stats := h.interviews.Stats()
	if h.cluster == nil {
		c.JSON(http.StatusOK, stats)
		return
	}

	body := gin.H{
		"onlineUsers":    stats.OnlineUsers,
		"waitingUsers":   stats.WaitingUsers,
		"activeSessions": stats.ActiveSessions,
	}
	if n, err := h.cluster.ActiveSessions(c.Request.Context()); err != nil {
		logger.Warn("Failed to read cluster session count", "error", err)
	} else {
		body["clusterActiveSessions"] = n
	}
	c.JSON(http.StatusOK, body)
}

// GetPresence 사용자의 presence 상태
func (h *InterviewHandler) GetPresence(c *gin.Context) {
	userID := c.Param("userId")
	c.JSON(http.StatusOK, gin.H{
		"userId": userID,
		"status": h.interviews.PresenceOf(userID),
	})
}

// GetHistory 사용자의 최근 세션 기록 (본인 기록만)
func (h *InterviewHandler) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session history is not enabled"})
		return
	}

	userID := c.Param("userId")
	if id := middleware.Identity(c); id == nil || id.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot read another user's history"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	records, err := h.history.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session history"})
		return
	}
	if records == nil {
		records = []models.SessionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": records})
}
