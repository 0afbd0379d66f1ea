package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/api"
	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/jobs"
	"github.com/yeisme/arca/pkg/internal/model"
)

// fakeRunner 记录被触发的任务.
type fakeRunner struct {
	mu    sync.Mutex
	calls []model.RunRecord
	busy  map[string]bool
	gate  chan struct{} // 非 nil 时任务阻塞到关闭
}

func (f *fakeRunner) record(job string, dryRun bool) (model.RunRecord, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	rec := model.RunRecord{Job: job, RunID: "01J", DryRun: dryRun}
	f.calls = append(f.calls, rec)

	return rec, nil
}

func (f *fakeRunner) Scan(_ context.Context, dryRun bool) (model.RunRecord, error) {
	return f.record(jobs.JobScan, dryRun)
}

func (f *fakeRunner) Reconcile(_ context.Context, dryRun bool) (model.RunRecord, error) {
	return f.record(jobs.JobReconcile, dryRun)
}

func (f *fakeRunner) Dedup(_ context.Context, dryRun bool) (model.RunRecord, error) {
	return f.record(jobs.JobDedup, dryRun)
}

func (f *fakeRunner) Runs(context.Context) ([]model.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]model.RunRecord(nil), f.calls...), nil
}

func (f *fakeRunner) Busy(job string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.busy[job]
}

func newServer(t *testing.T) (*api.Server, *gin.Engine, *fakeRunner) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := configs.Defaults()
	cfg.Server.TriggerRateLimit.Enabled = false

	r := &fakeRunner{}
	s := api.New(context.Background(), cfg, r, nil, zerolog.Nop())

	return s, s.Engine(), r
}

func do(e *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))

	return rec
}

// TestHealth 健康检查返回版本.
func TestHealth(t *testing.T) {
	_, e, _ := newServer(t)

	rec := do(e, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), configs.AppVersion)
}

// TestRunJob 触发后返回 202，任务在后台以演练模式运行.
func TestRunJob(t *testing.T) {
	s, e, r := newServer(t)

	rec := do(e, http.MethodPost, "/jobs/reconcile/run?dry_run=true")
	require.Equal(t, http.StatusAccepted, rec.Code)

	s.Wait()

	runs, err := r.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, jobs.JobReconcile, runs[0].Job)
	assert.True(t, runs[0].DryRun)

	rec = do(e, http.MethodGet, "/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []model.RunRecord `json:"runs"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Runs, 1)
}

// TestRunJobRejected 未知任务与非法参数被拒绝.
func TestRunJobRejected(t *testing.T) {
	s, e, r := newServer(t)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/jobs/trash/run").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/jobs/scan/run?dry_run=maybe").Code)

	s.Wait()
	assert.Empty(t, r.calls)
}

// TestRunJobBusy 任务锁被占用时返回 409 且不运行.
func TestRunJobBusy(t *testing.T) {
	s, e, r := newServer(t)
	r.busy = map[string]bool{jobs.JobScan: true}

	rec := do(e, http.MethodPost, "/jobs/scan/run")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already running")

	// 其他任务不受影响
	require.Equal(t, http.StatusAccepted, do(e, http.MethodPost, "/jobs/dedup/run").Code)

	s.Wait()

	runs, err := r.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, jobs.JobDedup, runs[0].Job)
}

// TestRunJobTriggeredTwice 手动触发的任务结束前再次触发返回 409.
func TestRunJobTriggeredTwice(t *testing.T) {
	s, e, r := newServer(t)
	r.gate = make(chan struct{})

	require.Equal(t, http.StatusAccepted, do(e, http.MethodPost, "/jobs/reconcile/run").Code)
	require.Equal(t, http.StatusConflict, do(e, http.MethodPost, "/jobs/reconcile/run").Code)

	close(r.gate)
	s.Wait()

	// 结束后可以再次触发
	require.Equal(t, http.StatusAccepted, do(e, http.MethodPost, "/jobs/reconcile/run").Code)
	s.Wait()

	runs, err := r.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

// TestMetricsEndpoint 启用监控时暴露 /metrics.
func TestMetricsEndpoint(t *testing.T) {
	_, e, _ := newServer(t)

	rec := do(e, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	// 默认注册表包含 Go 运行时指标
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
