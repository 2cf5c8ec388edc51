package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/api/handlers"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/api/middleware"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/config"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/service"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/websocket"
	jwtutil "github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/jwt"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/ratelimit"
)

// Dependencies 라우터가 사용하는 구성 요소. nil인 선택 항목은 해당 기능을 끈다
type Dependencies struct {
	Hub        *websocket.Hub
	Interviews *service.InterviewService
	Executions *service.ExecutionService

	JWT          *jwtutil.JWTManager         // 선택: 토큰 검증
	RedisLimiter *ratelimit.RedisRateLimiter // 선택: 없으면 인메모리 rate limit
	LocalLimiter *ratelimit.RateLimiter      // 선택: 인메모리 limiter 재사용
	Metrics      http.Handler                // 선택: /metrics
	Cluster      handlers.ClusterStats       // 선택: Redis 클러스터 세션 수
	History      handlers.SessionHistory     // 선택: PostgreSQL 세션 기록
	HealthChecks map[string]handlers.DependencyCheck
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)
	interviewHandler := handlers.NewInterviewHandler(deps.Interviews, deps.Cluster, deps.History)

	// Health check
	router.GET("/health", healthHandler.HealthCheck)

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint
		v1.GET("/ws", middleware.OptionalAuth(deps.JWT), wsHandler.HandleWebSocket)

		interviews := v1.Group("/interviews")
		{
			interviews.GET("/stats", interviewHandler.GetStats)
			interviews.GET("/presence/:userId", interviewHandler.GetPresence)
			if deps.History != nil && deps.JWT != nil {
				interviews.GET("/history/:userId", middleware.Auth(deps.JWT), interviewHandler.GetHistory)
			}
		}

		if deps.Executions != nil {
			executeHandler := handlers.NewExecuteHandler(deps.Executions)
			v1.POST("/execute",
				middleware.OptionalAuth(deps.JWT),
				executeRateLimit(cfg, deps),
				executeHandler.Execute)
		}
	}

	return router
}

func executeRateLimit(cfg *config.Config, deps Dependencies) gin.HandlerFunc {
	if cfg.ExecuteRateLimit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if deps.RedisLimiter != nil {
		return middleware.RedisExecuteRateLimit(deps.RedisLimiter, cfg.ExecuteRateLimit)
	}
	return middleware.ExecuteRateLimit(deps.LocalLimiter, int64(cfg.ExecuteRateLimit))
}
