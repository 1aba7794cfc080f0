package util

import (
	"errors"
	"net/http"
	"quizhub_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Reason  ErrorKind   `json:"reason,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
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
	c.JSON(http.StatusUnauthorized, Response{
		Code:    http.StatusUnauthorized,
		Message: "Unauthorized",
		Reason:  KindUnauthenticated,
	})
}

func Forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, Response{
		Code:    http.StatusForbidden,
		Message: "Forbidden",
		Reason:  KindForbidden,
	})
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
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// RespondError 按错误类别渲染响应，未分类错误按 500 处理并记录日志
func RespondError(c *gin.Context, err error) {
	kind := KindOf(err)
	if kind == "" {
		LogInternalError(c, err)
		return
	}

	status := HTTPStatus(kind)
	if kind == KindStorageFailure {
		logger.Log.Warn("storage failure", zap.Error(err), zap.String("path", c.FullPath()))
	}

	message := err.Error()
	var appErr *AppError
	if status >= http.StatusInternalServerError && errors.As(err, &appErr) {
		// 不向客户端暴露底层存储错误
		message = appErr.Message
	}

	c.JSON(status, Response{
		Code:    status,
		Message: message,
		Reason:  kind,
	})
}
