// Package api 提供运维 HTTP 接口：健康检查、指标、运行记录与手动触发任务.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/jobs"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/metrics"
	"github.com/yeisme/arca/pkg/middleware"
	"github.com/yeisme/arca/pkg/scheduler"
)

// Runner 执行任务并提供最近的运行记录.
type Runner interface {
	jobs.Runner
	Runs(ctx context.Context) ([]model.RunRecord, error)
	// Busy 报告任务当前是否在运行（包括其他进程）.
	Busy(job string) bool
}

// Server 运维接口.
type Server struct {
	cfg    configs.AppConfig
	runner Runner
	sched  *scheduler.Scheduler // 可为 nil
	logger zerolog.Logger

	// base 手动触发的任务使用的上下文，与请求生命周期无关
	base context.Context
	wg   sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New 创建运维接口. base 结束时手动触发的任务随之取消.
func New(base context.Context, cfg configs.AppConfig, runner Runner, sched *scheduler.Scheduler, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		runner:   runner,
		sched:    sched,
		logger:   logger.With().Str("component", "api").Logger(),
		base:     base,
		inflight: make(map[string]struct{}),
	}
}

// Engine 注册全部路由.
func (s *Server) Engine() *gin.Engine {
	e := gin.New()
	e.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
	)

	e.GET("/healthz", s.health)
	metrics.StartMetricsServer(s.cfg.Metrics, s.cfg.Server.Debug, e)

	g := e.Group("/jobs")
	g.GET("", s.listJobs)
	g.POST("/:name/run", middleware.RateLimitMiddleware(s.cfg.Server.TriggerRateLimit), s.runJob)

	return e
}

// Wait 等待手动触发的任务结束.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": configs.AppVersion})
}

// listJobs 返回最近运行记录与调度信息.
func (s *Server) listJobs(c *gin.Context) {
	runs, err := s.runner.Runs(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	resp := gin.H{"runs": runs}
	if s.sched != nil {
		resp["schedule"] = s.sched.GetJobInfos()
	}

	c.JSON(http.StatusOK, resp)
}

// runJob 在响应之后于后台运行任务. 任务已在运行时返回 409.
func (s *Server) runJob(c *gin.Context) {
	name := c.Param("name")

	run, ok := jobs.Dispatch(s.runner, name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job " + strconv.Quote(name), "jobs": jobs.Names()})
		return
	}

	dryRun, err := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dry_run must be a boolean"})
		return
	}

	if !s.claim(name) {
		c.JSON(http.StatusConflict, gin.H{"error": "job " + strconv.Quote(name) + " is already running"})
		return
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.release(name)

		rec, err := run(s.base, dryRun)

		switch {
		case errors.Is(err, context.Canceled):
			s.logger.Warn().Str("job", name).Msg("triggered run cancelled")
		case err != nil:
			s.logger.Error().Err(err).Str("job", name).Str("run_id", rec.RunID).Msg("triggered run failed")
		default:
			s.logger.Info().Str("job", name).Str("run_id", rec.RunID).Msg("triggered run finished")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job": name, "dry_run": dryRun})
}

// claim 登记手动触发的任务；本进程已在运行或锁被占用时返回 false.
func (s *Server) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inflight[name]; ok || s.runner.Busy(name) {
		return false
	}

	s.inflight[name] = struct{}{}

	return true
}

func (s *Server) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, name)
}
