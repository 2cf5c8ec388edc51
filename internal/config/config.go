package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database (비어 있으면 세션 기록 비활성화)
	DatabaseURL string

	// Redis (비어 있으면 이벤트 발행/분산 rate limit 비활성화)
	RedisURL string

	// JWT (비어 있으면 토큰 검증 없이 클라이언트가 보낸 identity 사용)
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Interview
	RoundDuration       time.Duration
	EnforceSolverWrites bool

	// WebSocket
	SendBufferSize  int
	EventsPerSecond int

	// Executor Service
	ExecutorURL      string
	ExecutorTimeout  time.Duration
	ExecuteRateLimit int
}

// fileConfig CONFIG_FILE로 지정한 YAML 파일. 환경 변수가 있으면 환경 변수가 우선한다
type fileConfig struct {
	Interview struct {
		RoundDuration       string `yaml:"round_duration"`
		EnforceSolverWrites string `yaml:"enforce_solver_writes"`
	} `yaml:"interview"`

	WebSocket struct {
		SendBuffer      string `yaml:"send_buffer"`
		EventsPerSecond string `yaml:"events_per_second"`
	} `yaml:"websocket"`

	Executor struct {
		URL       string `yaml:"url"`
		Timeout   string `yaml:"timeout"`
		RateLimit string `yaml:"rate_limit"`
	} `yaml:"executor"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:                getEnv("PORT", "5000"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpiration:       parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		RoundDuration:       parseDuration(getEnv("ROUND_DURATION", or(file.Interview.RoundDuration, "30m")), 30*time.Minute),
		EnforceSolverWrites: parseBool(getEnv("ENFORCE_SOLVER_WRITES", or(file.Interview.EnforceSolverWrites, "true")), true),
		SendBufferSize:      parseInt(getEnv("WS_SEND_BUFFER", or(file.WebSocket.SendBuffer, "256")), 256),
		EventsPerSecond:     parseInt(getEnv("WS_EVENTS_PER_SECOND", or(file.WebSocket.EventsPerSecond, "50")), 50),
		ExecutorURL:         getEnv("EXECUTOR_URL", or(file.Executor.URL, "http://localhost:8081")),
		ExecutorTimeout:     parseDuration(getEnv("EXECUTOR_TIMEOUT", or(file.Executor.Timeout, "15s")), 15*time.Second),
		ExecuteRateLimit:    parseInt(getEnv("EXECUTE_RATE_LIMIT", or(file.Executor.RateLimit, "10")), 10),
		CORSAllowedOrigins:  parseList(getEnv("CORS_ALLOWED_ORIGINS", or(strings.Join(file.CORS.AllowedOrigins, ","), "http://localhost:3000,http://localhost:5173"))),
	}

	return cfg, nil
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration "0"은 비활성화 의미로 그대로 0을 반환
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
