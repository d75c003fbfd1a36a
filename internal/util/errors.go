package util

import (
	"elearn_backend/pkg/logger"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorKind 错误分类，决定 HTTP 状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindServiceUnavailable
	KindUnauthorized
	KindConflict
)

// AppError 业务错误，携带分类与面向调用方的消息
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 允许 errors.Is 按分类匹配哨兵错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NewForbidden(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NewValidation(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewServiceUnavailable(message string, err error) *AppError {
	return &AppError{Kind: KindServiceUnavailable, Message: message, Err: err}
}

var (
	ErrNotFound           = &AppError{Kind: KindNotFound}
	ErrForbidden          = &AppError{Kind: KindForbidden}
	ErrValidation         = &AppError{Kind: KindValidation}
	ErrServiceUnavailable = &AppError{Kind: KindServiceUnavailable}

	ErrUserNotFound         = &AppError{Kind: KindNotFound, Message: "user not found"}
	ErrEmailRegistered      = &AppError{Kind: KindConflict, Message: "email already registered"}
	ErrInvalidCredentials   = &AppError{Kind: KindUnauthorized, Message: "invalid credentials"}
	ErrProgramNotFound      = &AppError{Kind: KindNotFound, Message: "program not found"}
	ErrQuestionNotFound     = &AppError{Kind: KindNotFound, Message: "question not found"}
	ErrExamNotAvailable     = &AppError{Kind: KindNotFound, Message: "exam not found or disabled"}
	ErrAttemptNotFound      = &AppError{Kind: KindNotFound, Message: "attempt not found"}
	ErrPermissionDenied     = &AppError{Kind: KindForbidden, Message: "permission denied"}
	ErrEntitlementRequired  = &AppError{Kind: KindForbidden, Message: "purchase or active subscription required"}
	ErrChatSessionNotFound  = &AppError{Kind: KindNotFound, Message: "chat session not found"}
	ErrCertificateNotFound  = &AppError{Kind: KindNotFound, Message: "certificate not found"}
	ErrPaymentsNotAvailable = &AppError{Kind: KindServiceUnavailable, Message: "payment provider not configured"}
)

// AttemptLimitExceeded 达到最大尝试次数
func AttemptLimitExceeded(maxAttempts int) *AppError {
	return NewForbidden("Maximum attempts (%d) reached", maxAttempts)
}

func statusForKind(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 在控制器边界把错误映射为状态码和统一响应
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		status := statusForKind(appErr.Kind)
		if appErr.Kind == KindServiceUnavailable {
			logger.Log.Warn("Downstream service unavailable",
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		Error(c, status, appErr.Message)
		return
	}
	LogInternalError(c, err)
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	InternalServerError(c)
}
