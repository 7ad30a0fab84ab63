package util

import (
	"errors"
	"net/http"

	"leave_assessment_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
}

// PartialFailure 代码执行或 AI 点评失败时以 200 返回
type PartialFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Timeout bool   `json:"timeout,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

// StatusFor 错误类型映射 HTTP 状态码
func StatusFor(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 统一错误响应
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		LogInternalError(c, err)
		return
	}
	if appErr.Kind == KindUpstream {
		logger.Log.Warn("upstream failure", zap.String("path", c.FullPath()), zap.Error(err))
	}
	Error(c, StatusFor(appErr.Kind), appErr.Message)
}

// HandleProviderError 上游失败与超时返回 {success:false} 便于前端重试，其余交给 HandleError
func HandleProviderError(c *gin.Context, err error) {
	switch KindOf(err) {
	case KindUpstream:
		logger.Log.Warn("provider failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusOK, PartialFailure{Success: false, Error: err.Error()})
	case KindTimeout:
		c.JSON(http.StatusOK, PartialFailure{Success: false, Error: err.Error(), Timeout: true})
	default:
		HandleError(c, err)
	}
}
