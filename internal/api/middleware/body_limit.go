package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/splusoficial/savvy-clinic-connect/pkg/response"
)

// BodyLimit 全局请求体大小限制中间件
// 推送订阅上报是唯一带请求体的接口，1MB 上限绰绰有余
// maxBytes: 允许的最大请求体字节数（如 1<<20 = 1MB）
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() {
			return
		}
		for _, err := range c.Errors {
			if err.Err != nil && err.Err.Error() == "http: request body too large" {
				response.Fail(c, http.StatusRequestEntityTooLarge, "Corpo da requisição muito grande")
				return
			}
		}
	}
}
