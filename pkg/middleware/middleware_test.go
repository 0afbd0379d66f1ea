package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/metrics"
	"github.com/yeisme/arca/pkg/middleware"
)

func serve(e *gin.Engine, method, path string) int {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	return rec.Code
}

// TestRateLimit 超出突发容量后返回 429.
func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2}))
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x"))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x"))
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/x"))
}

// TestRateLimitDisabled 未启用时不限流.
func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{}))
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 5 {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x"))
	}
}

// TestPrometheusMiddleware 按路由模板计数.
func TestPrometheusMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(middleware.PrometheusMiddleware(), middleware.TracingMiddleware(), middleware.GinLoggerMiddleware())
	e.POST("/jobs/:name/run", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	counter := metrics.RequestCounter.WithLabelValues(http.MethodPost, "/jobs/:name/run", "202")
	unmatched := metrics.RequestCounter.WithLabelValues(http.MethodGet, "unmatched", "404")
	before, beforeUnmatched := testutil.ToFloat64(counter), testutil.ToFloat64(unmatched)

	assert.Equal(t, http.StatusAccepted, serve(e, http.MethodPost, "/jobs/scan/run"))
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/nope"))

	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0)
	assert.InDelta(t, beforeUnmatched+1, testutil.ToFloat64(unmatched), 0)
}
