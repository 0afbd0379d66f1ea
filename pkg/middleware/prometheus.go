// Package middleware 提供运维接口使用的 Gin 中间件.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/arca/pkg/metrics"
)

// PrometheusMiddleware Prometheus监控中间件. 按路由模板统计，未匹配的路径记为 unmatched.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 执行下一个中间件/处理器
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.ObserveRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start).Seconds())
	}
}
