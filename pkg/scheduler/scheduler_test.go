package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.NewScheduler(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	return s
}

// TestAddCron 重名与非法表达式被拒绝.
func TestAddCron(t *testing.T) {
	s := newScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddCron(context.Background(), "scan", "0 3 * * *", noop))
	require.Error(t, s.AddCron(context.Background(), "scan", "0 4 * * *", noop))
	require.Error(t, s.AddCron(context.Background(), "bad", "not a cron", noop))

	infos := s.GetJobInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, "scan", infos[0].Name)
	assert.Equal(t, scheduler.StatusScheduled, infos[0].Status)
}

// TestNextRunAfterStart 启动后立即可见下次运行时间.
func TestNextRunAfterStart(t *testing.T) {
	s := newScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddCron(context.Background(), "scan", "0 3 * * *", noop))
	s.Start()

	info, err := s.GetJobInfoByName("scan")
	require.NoError(t, err)
	assert.False(t, info.NextRun.IsZero())
	assert.True(t, info.NextRun.After(time.Now()))
	assert.Equal(t, 3, info.NextRun.Hour())
}

// TestRunNow 立即执行并记录成功.
func TestRunNow(t *testing.T) {
	s := newScheduler(t)

	var calls atomic.Int32

	require.NoError(t, s.AddCron(context.Background(), "reconcile", "30 3 * * *", func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	s.Start()

	require.NoError(t, s.RunNow("reconcile"))
	require.Eventually(t, func() bool {
		info, err := s.GetJobInfoByName("reconcile")
		return err == nil && !info.LastSuccess.IsZero()
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	require.Error(t, s.RunNow("missing"))
}

// TestJobError 任务错误写入任务信息.
func TestJobError(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.AddCron(context.Background(), "dedup", "0 5 * * *", func(context.Context) error {
		return errors.New("quarantine not writable")
	}))
	s.Start()

	require.NoError(t, s.RunNow("dedup"))
	require.Eventually(t, func() bool {
		info, err := s.GetJobInfoByName("dedup")
		return err == nil && info.Status == scheduler.StatusError
	}, 5*time.Second, 20*time.Millisecond)

	info, err := s.GetJobInfoByName("dedup")
	require.NoError(t, err)
	assert.Equal(t, "quarantine not writable", info.Error)
}

// TestRemoveJobByName 移除后不再出现在列表中.
func TestRemoveJobByName(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.AddCron(context.Background(), "scan", "0 3 * * *", func(context.Context) error { return nil }))
	require.NoError(t, s.RemoveJobByName("scan"))
	require.Error(t, s.RemoveJobByName("scan"))
	assert.Empty(t, s.GetJobInfos())
}
