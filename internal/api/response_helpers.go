// internal/api/response_helpers.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/gin-gonic/gin"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.respond(c, http.StatusOK, data, message...)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	rh.respond(c, http.StatusCreated, data, message...)
}

func (rh *ResponseHelper) respond(c *gin.Context, status int, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

// sanitizeErrorMessage 去掉可能包含密钥的错误信息
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "apikey", "key=", "secret", "token", "password"} {
		if strings.Contains(lower, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if len(details) > 0 && details[0] != "" {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, resource string, details ...string) {
	rh.Error(c, http.StatusNotFound, rh.getResourceNotFoundCode(resource), resource+" not found", details...)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// ServiceUnavailable 503错误响应
func (rh *ResponseHelper) ServiceUnavailable(c *gin.Context, code, message string, details ...string) {
	rh.Error(c, http.StatusServiceUnavailable, code, message, details...)
}

// HandleError 按 AppError 类型选择状态码和错误代码；code 用于未找到和未分类的错误
func (rh *ResponseHelper) HandleError(c *gin.Context, err error, code string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		rh.InternalError(c, "An internal error occurred", err.Error())
		return
	}

	status, code := statusForError(appErr.Type, code)
	details := ""
	if appErr.Err != nil && appErr.Type != apperrors.ErrorTypeExternal {
		details = appErr.Err.Error()
	}
	// 生成失败只把用户可读的信息返回给客户端
	rh.Error(c, status, code, appErr.Message, details)
}

func statusForError(t apperrors.ErrorType, fallbackCode string) (int, string) {
	if fallbackCode == "" {
		fallbackCode = ErrorInternalError
	}

	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, ErrorBadRequest
	case apperrors.ErrorTypeNotFound:
		if fallbackCode == ErrorInternalError {
			return http.StatusNotFound, ErrorNotFound
		}
		return http.StatusNotFound, fallbackCode
	case apperrors.ErrorTypeExternal:
		return http.StatusBadGateway, ErrorGenerationFailed
	case apperrors.ErrorTypeStorage:
		return http.StatusInternalServerError, ErrorStorageFailed
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, ErrorTimeout
	}
	return http.StatusInternalServerError, fallbackCode
}

// DownloadResponse 下载响应（强制下载）
func (rh *ResponseHelper) DownloadResponse(c *gin.Context, content []byte, filename string, contentType string) {
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Length", fmt.Sprintf("%d", len(content)))
	c.Data(http.StatusOK, contentType, content)
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// getResourceNotFoundCode 根据资源类型生成错误代码
func (rh *ResponseHelper) getResourceNotFoundCode(resource string) string {
	switch resource {
	case "draft":
		return ErrorDraftNotFound
	case "hook":
		return ErrorHookNotFound
	default:
		return ErrorNotFound
	}
}
