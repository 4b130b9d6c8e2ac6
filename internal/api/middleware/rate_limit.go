package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/splusoficial/savvy-clinic-connect/pkg/redis"
	"github.com/splusoficial/savvy-clinic-connect/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// 安装码接口暴露在公网且无需登录，按 IP 限流防止暴力枚举
// limit: 窗口内允许的最大请求数
// window: 滑动窗口时长
// rdb 为 nil 时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			// Redis 出错时降级放行
			c.Next()
			return
		}

		if !allowed {
			response.TooManyRequests(c, "Muitas requisições, tente novamente em instantes")
			c.Abort()
			return
		}

		c.Next()
	}
}
