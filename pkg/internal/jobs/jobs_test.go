package jobs_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/jobs"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/scheduler"
)

type runner struct {
	called []string
}

func (r *runner) record(job string, dryRun bool) (model.RunRecord, error) {
	r.called = append(r.called, job)
	return model.RunRecord{Job: job, DryRun: dryRun}, nil
}

func (r *runner) Scan(_ context.Context, dryRun bool) (model.RunRecord, error) {
	return r.record(jobs.JobScan, dryRun)
}

func (r *runner) Reconcile(_ context.Context, dryRun bool) (model.RunRecord, error) {
	return r.record(jobs.JobReconcile, dryRun)
}

func (r *runner) Dedup(_ context.Context, dryRun bool) (model.RunRecord, error) {
	return r.record(jobs.JobDedup, dryRun)
}

// TestRegisterCronJobs 空 cron 的任务不注册.
func TestRegisterCronJobs(t *testing.T) {
	sched, err := scheduler.NewScheduler(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	cfg := configs.Defaults().Jobs
	require.Empty(t, cfg.DedupCron)

	require.NoError(t, jobs.RegisterCronJobs(context.Background(), sched, &runner{}, cfg))

	var names []string
	for _, info := range sched.GetJobInfos() {
		names = append(names, info.Name)
	}

	assert.Equal(t, []string{jobs.JobReconcile, jobs.JobScan}, names)
}

// TestFunc 任务名称映射到对应的运行函数.
func TestFunc(t *testing.T) {
	r := &runner{}

	for _, name := range jobs.Names() {
		fn, ok := jobs.Func(r, name)
		require.True(t, ok)
		require.NoError(t, fn(context.Background()))
		assert.True(t, jobs.Valid(name))
	}

	assert.Equal(t, jobs.Names(), r.called)

	_, ok := jobs.Func(r, "trash")
	assert.False(t, ok)
	assert.False(t, jobs.Valid("trash"))
}

// TestDispatch 手动触发可以选择演练模式.
func TestDispatch(t *testing.T) {
	r := &runner{}

	run, ok := jobs.Dispatch(r, jobs.JobDedup)
	require.True(t, ok)

	rec, err := run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, rec.DryRun)
	assert.Equal(t, jobs.JobDedup, rec.Job)
}
