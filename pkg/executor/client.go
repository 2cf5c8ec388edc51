package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/logger"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrEmptyCode           = errors.New("no code provided")
	ErrUnavailable         = errors.New("executor unavailable")
)

// 지원 언어 (별칭 포함)
var languages = map[string]string{
	"python":     "python",
	"py":         "python",
	"javascript": "javascript",
	"js":         "javascript",
	"java":       "java",
	"cpp":        "cpp",
	"c++":        "cpp",
	"c":          "c",
}

// NormalizeLanguage 언어 이름을 실행기 표준 이름으로 변환
func NormalizeLanguage(language string) (string, error) {
	lang, ok := languages[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return lang, nil
}

// Request 실행 요청
type Request struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Result 실행 결과
type Result struct {
	Success              bool    `json:"success"`
	Output               string  `json:"output"`
	Error                string  `json:"error,omitempty"`
	ExecutionTimeSeconds float64 `json:"executionTimeSeconds"`
}

// sandboxResponse 원격 샌드박스 응답 형식
type sandboxResponse struct {
	Success       bool    `json:"success"`
	Output        string  `json:"output"`
	Error         *string `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
}

type Client struct {
	rest    *resty.Client
	baseURL string
}

// NewClient 코드 실행 샌드박스 HTTP 클라이언트 생성
func NewClient(baseURL string, timeout time.Duration) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(1).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusServiceUnavailable
		})

	logger.Info("Executor client configured", "url", baseURL, "timeout", timeout)

	return &Client{rest: rest, baseURL: baseURL}
}

// Execute 코드 실행 요청
//
// 샌드박스가 응답하지 못하면 ErrUnavailable로 감싼 오류를 반환한다.
// 실행 자체의 실패 (컴파일 오류 등)는 오류가 아니라 Success=false인 결과다.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrEmptyCode
	}
	lang, err := NormalizeLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	req.Language = lang

	var body sandboxResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		SetError(&body).
		Post("/api/execute")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// 4xx 응답도 success=false 본문을 담고 있다
	if resp.StatusCode() >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	result := &Result{
		Success:              body.Success,
		Output:               body.Output,
		ExecutionTimeSeconds: body.ExecutionTime,
	}
	if body.Error != nil {
		result.Error = *body.Error
	}
	return result, nil
}

// HealthCheck 샌드박스 응답 확인
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	return nil
}
