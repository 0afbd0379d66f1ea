// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集运维接口、批处理运行与系统指标.
//
// Example:
//
//	import "github.com/yeisme/arca/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录一次运行
//	metrics.ObserveRun(run)
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/model"
)

const namespace = "arca"

// 运行状态标签取值.
const (
	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RunsTotal 批处理运行次数.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs by job and outcome",
		},
		[]string{"job", "status"},
	)

	// RunDuration 批处理运行耗时.
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Batch run duration in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
		[]string{"job"},
	)

	// LastRun 最近一次运行结束时间.
	LastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run",
		},
		[]string{"job"},
	)

	// ScanFiles 本地扫描文件结果.
	ScanFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "files_total",
			Help:      "Local scan candidates by result",
		},
		[]string{"result"},
	)

	// ReconcileRecords 远端同步记录结果.
	ReconcileRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "records_total",
			Help:      "Remote reconcile records by action",
		},
		[]string{"action"},
	)

	// DedupFiles 重复文件处理结果.
	DedupFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "files_total",
			Help:      "Duplicate files by action",
		},
		[]string{"action"},
	)

	// DedupBytes 隔离释放的字节数.
	DedupBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "reclaimed_bytes_total",
			Help:      "Bytes moved to quarantine",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	initOnce sync.Once
)

// InitMetrics 初始化Metrics，多次调用只注册一次.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)

		// 注册标准收集器
		if config.RuntimeMetrics {
			if err = reg.Register(collectors.NewGoCollector()); err != nil {
				return
			}

			if err = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
				return
			}
		}

		for _, c := range []prometheus.Collector{
			RequestCounter, RequestDuration,
			RunsTotal, RunDuration, LastRun,
			ScanFiles, ReconcileRecords, DedupFiles, DedupBytes,
		} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})

	return err
}

// Handler 返回 /metrics 处理器，同时导出默认注册表中的 GORM 指标.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	)
}

// StartMetricsServer 在运维引擎上挂载 Metrics 与 pprof 端点.
func StartMetricsServer(config configs.MetricsConfig, debug bool, engine *gin.Engine) {
	if !config.Enabled {
		return
	}

	engine.GET(config.Path, gin.WrapH(Handler()))

	// 调试模式下注册pprof端点
	if debug {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}

// ObserveRequest 记录一次 HTTP 请求.
func ObserveRequest(method, endpoint string, status int, seconds float64) {
	RequestCounter.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}

// RunStatus 返回运行结果标签.
func RunStatus(run model.RunRecord) string {
	switch {
	case run.Scan != nil && run.Scan.Cancelled,
		run.Reconcile != nil && run.Reconcile.Cancelled,
		run.Dedup != nil && run.Dedup.Cancelled:
		return StatusCancelled
	case run.Error != "":
		return StatusFailed
	default:
		return StatusOK
	}
}

// ObserveRun 根据运行记录更新指标. 演练模式只记录运行次数与耗时.
func ObserveRun(run model.RunRecord) {
	RunsTotal.WithLabelValues(run.Job, RunStatus(run)).Inc()
	RunDuration.WithLabelValues(run.Job).Observe(run.Duration.Seconds())
	LastRun.WithLabelValues(run.Job).Set(float64(run.StartedAt.Add(run.Duration).Unix()))

	if run.DryRun {
		return
	}

	if s := run.Scan; s != nil {
		ScanFiles.WithLabelValues("inserted").Add(float64(s.Inserted))
		ScanFiles.WithLabelValues("skipped").Add(float64(s.Skipped))
		ScanFiles.WithLabelValues("repeated").Add(float64(s.Repeated))
		ScanFiles.WithLabelValues("errored").Add(float64(s.Errored))
		ScanFiles.WithLabelValues("index_failed").Add(float64(s.IndexFailures))
	}

	if r := run.Reconcile; r != nil {
		ReconcileRecords.WithLabelValues("deleted").Add(float64(r.Deleted))
		ReconcileRecords.WithLabelValues("inserted").Add(float64(r.Inserted))
		ReconcileRecords.WithLabelValues("skipped").Add(float64(r.Skipped))
		ReconcileRecords.WithLabelValues("errored").Add(float64(r.Errored))
	}

	if d := run.Dedup; d != nil {
		DedupFiles.WithLabelValues("moved").Add(float64(d.Moved))
		DedupFiles.WithLabelValues("failed").Add(float64(d.Failed))
		DedupBytes.Add(float64(d.BytesReclaimed))
	}
}
