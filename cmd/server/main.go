package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/api"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/api/handlers"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/api/middleware"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/config"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/metrics"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/repository"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/service"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/websocket"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/database"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/distributed"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/executor"
	jwtutil "github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/jwt"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/logger"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/ratelimit"
)

const (
	shutdownTimeout = 10 * time.Second
	schemaLockKey   = "alphax:locks:schema"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	instanceID := uuid.NewString()
	logger.Info("Starting ALPHA-X interview server",
		"port", cfg.Port,
		"env", cfg.Env,
		"instanceId", instanceID,
		"roundDuration", cfg.RoundDuration,
		"enforceSolverWrites", cfg.EnforceSolverWrites,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
	healthChecks := map[string]handlers.DependencyCheck{}
	deps := api.Dependencies{Metrics: promhttp.Handler()}
	options := []service.Option{service.WithMetrics(collector)}

	// Redis (선택)
	var (
		redisClient *redis.Client
		bus         *distributed.LifecycleBus
		locks       *distributed.RedisLockManager
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", "error", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		logger.Info("Redis connection established")

		bus = distributed.NewLifecycleBus(redisClient, instanceID, logger.Named("lifecycle"))
		locks = distributed.NewRedisLockManager(redisClient, instanceID)

		deps.RedisLimiter = ratelimit.NewRedisRateLimiter(redisClient, ratelimit.RedisRateLimiterConfig{KeyPrefix: "alphax:ratelimit:"})
		deps.Cluster = bus
		options = append(options, service.WithPublisher(bus))
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	// 데이터베이스 (선택)
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		sessions := repository.NewSessionRepository(db)
		if err := ensureSchema(ctx, locks, sessions); err != nil {
			logger.Fatal("Failed to prepare session schema", "error", err)
		}

		deps.History = sessions
		options = append(options, service.WithSessionStore(sessions))
		healthChecks["database"] = db.Ping
	}

	// WebSocket hub + 인터뷰 서비스
	hub := websocket.NewHub(websocket.HubConfig{
		SendBufferSize:  cfg.SendBufferSize,
		EventsPerSecond: cfg.EventsPerSecond,
		CheckOrigin:     middleware.OriginChecker(cfg.CORSAllowedOrigins),
	}, logger.Named("hub"))

	interviews := service.NewInterviewService(service.InterviewOptions{
		RoundDuration:       cfg.RoundDuration,
		EnforceSolverWrites: cfg.EnforceSolverWrites,
		InstanceID:          instanceID,
	}, hub, logger.Named("interview"), options...)
	hub.SetHandler(interviews)

	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	if bus != nil {
		go func() {
			err := bus.Subscribe(ctx, nil, func(ev models.LifecycleEvent) {
				logger.Debug("Remote session event",
					"type", ev.Type,
					"roomId", ev.RoomID,
					"instanceId", ev.InstanceID,
				)
			})
			if err != nil {
				logger.Error("Lifecycle subscriber failed", "error", err)
			}
		}()
	}

	// 코드 실행
	execClient := executor.NewClient(cfg.ExecutorURL, cfg.ExecutorTimeout)
	healthChecks["executor"] = execClient.HealthCheck

	localLimiter := ratelimit.NewRateLimiter(int64(cfg.ExecuteRateLimit), 1)
	defer localLimiter.Stop()

	deps.Hub = hub
	deps.Interviews = interviews
	deps.Executions = service.NewExecutionService(execClient, collector, logger.Named("execute"))
	deps.LocalLimiter = localLimiter
	deps.HealthChecks = healthChecks
	if cfg.JWTSecret != "" {
		deps.JWT = jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	} else {
		logger.Warn("JWT_SECRET not set, trusting client supplied identities")
	}

	router := api.SetupRouter(cfg, deps)

	// 서버 설정 (WebSocket 연결이 오래 유지되므로 WriteTimeout 없음)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", "error", err)
	}

	// 진행 중인 세션 종료 통보 후 저장/전파 대기
	if err := interviews.Shutdown(shutdownCtx); err != nil {
		logger.Error("Interview service shutdown incomplete", "error", err)
	}
	stopHub()

	if bus != nil {
		if err := bus.ForgetInstance(shutdownCtx); err != nil {
			logger.Warn("Failed to clear active sessions", "error", err)
		}
	}

	logger.Info("Server exited", "openConnections", hub.Count())
}

// ensureSchema 여러 인스턴스가 동시에 뜰 때 스키마 생성은 한 번만
func ensureSchema(ctx context.Context, locks *distributed.RedisLockManager, sessions *repository.SessionRepository) error {
	if locks == nil {
		return sessions.EnsureSchema(ctx)
	}
	return locks.WithLock(ctx, schemaLockKey, 10*time.Second, sessions.EnsureSchema)
}
