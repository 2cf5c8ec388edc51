package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/executor"
)

// Executor 원격 코드 실행기
type Executor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
}

// ExecutionMetrics 실행 요청 지표
type ExecutionMetrics interface {
	RecordExecution(language string, success bool)
}

// ExecutionService 세션과 무관하게 코드 실행 요청을 샌드박스로 전달
type ExecutionService struct {
	executor Executor
	metrics  ExecutionMetrics
	logger   *zap.Logger
}

func NewExecutionService(exec Executor, metrics ExecutionMetrics, logger *zap.Logger) *ExecutionService {
	return &ExecutionService{
		executor: exec,
		metrics:  metrics,
		logger:   logger,
	}
}

// Execute 코드 실행
//
// 샌드박스 장애 시에도 Success=false 결과를 함께 반환해 호출자가 그대로
// 보여줄 수 있게 한다.
func (s *ExecutionService) Execute(ctx context.Context, code, language string) (*executor.Result, error) {
	res, err := s.executor.Execute(ctx, executor.Request{Code: code, Language: language})
	switch {
	case errors.Is(err, executor.ErrEmptyCode), errors.Is(err, executor.ErrUnsupportedLanguage):
		return &executor.Result{Success: false, Error: err.Error()}, fmt.Errorf("%w: %v", ErrInvalidInput, err)

	case err != nil:
		s.logger.Warn("Code execution failed",
			zap.String("language", language),
			zap.Error(err))
		s.record(language, false)
		return &executor.Result{Success: false, Error: ErrExecutionUnavailable.Error()}, fmt.Errorf("%w: %v", ErrExecutionUnavailable, err)
	}

	s.record(language, res.Success)
	return res, nil
}

func (s *ExecutionService) record(language string, success bool) {
	if s.metrics == nil {
		return
	}
	if lang, err := executor.NormalizeLanguage(language); err == nil {
		language = lang
	}
	s.metrics.RecordExecution(language, success)
}
