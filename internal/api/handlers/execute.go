package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/service"
)

// ExecuteHandler 코드 실행 API
type ExecuteHandler struct {
	executions *service.ExecutionService
}

func NewExecuteHandler(executions *service.ExecutionService) *ExecuteHandler {
	return &ExecuteHandler{executions: executions}
}

type ExecuteRequest struct {
	Code     string `json:"code" binding:"required,max=65536"`
	Language string `json:"language" binding:"required,max=32"`
}

// Execute godoc
// @Summary Execute code
// @Description Run a snippet in the remote sandbox and return its output
// @Tags execution
// @Accept json
// @Produce json
// @Param request body ExecuteRequest true "Code and language"
// @Success 200 {object} executor.Result
// @Failure 400 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 503 {object} executor.Result
// @Router /api/v1/execute [post]
func (h *ExecuteHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "code and language are required",
		})
		return
	}

	res, err := h.executions.Execute(c.Request.Context(), req.Code, req.Language)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, res)
	case err != nil:
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
