package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	jwtutil "github.com/Harsha-pandey9/Ai-Based-Tutoring/pkg/jwt"
)

const (
	contextUserID      = "userId"
	contextDisplayName = "displayName"
)

var (
	errMissingToken  = errors.New("authorization token required")
	errInvalidHeader = errors.New("invalid authorization header format")
)

// Auth JWT 인증 미들웨어 (토큰 필수)
func Auth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtManager == nil {
			abortUnauthorized(c, errMissingToken)
			return
		}
		if err := authenticate(c, jwtManager); err != nil {
			abortUnauthorized(c, err)
			return
		}
		if _, ok := c.Get(contextUserID); !ok {
			abortUnauthorized(c, errMissingToken)
			return
		}
		c.Next()
	}
}

// OptionalAuth 토큰이 있으면 검증하고, 없으면 익명으로 통과
//
// WebSocket 업그레이드는 헤더를 붙이기 어려워 ?token= 쿼리도 받는다.
// jwtManager가 nil이면 (JWT_SECRET 미설정) 검증 없이 통과한다.
func OptionalAuth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtManager == nil {
			c.Next()
			return
		}
		if err := authenticate(c, jwtManager); err != nil {
			abortUnauthorized(c, err)
			return
		}
		c.Next()
	}
}

// authenticate 토큰이 있으면 검증 후 context에 저장. 토큰이 없으면 nil
func authenticate(c *gin.Context, jwtManager *jwtutil.JWTManager) error {
	token, err := extractToken(c)
	if err != nil || token == "" {
		return err
	}

	claims, err := jwtManager.Verify(token)
	if err != nil {
		return err
	}

	c.Set(contextUserID, claims.UserID)
	c.Set(contextDisplayName, claims.DisplayName)
	return nil
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("token"), nil
	}

	// "Bearer <token>" 형식 파싱
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errInvalidHeader
	}
	return parts[1], nil
}

func abortUnauthorized(c *gin.Context, err error) {
	message := "Invalid or expired token"
	if errors.Is(err, errMissingToken) || errors.Is(err, errInvalidHeader) {
		message = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}

// Identity 인증 미들웨어가 저장한 참가자 정보 (익명이면 nil)
func Identity(c *gin.Context) *models.Participant {
	userID := c.GetString(contextUserID)
	if userID == "" {
		return nil
	}
	return &models.Participant{
		UserID:      userID,
		DisplayName: c.GetString(contextDisplayName),
	}
}
