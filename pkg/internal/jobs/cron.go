// Package jobs 负责把批处理任务注册到 scheduler.
package jobs

import (
	"context"
	"errors"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/scheduler"
)

// Runner 执行批处理任务. 返回的运行记录已经持久化，调度器只关心错误.
type Runner interface {
	Scan(ctx context.Context, dryRun bool) (model.RunRecord, error)
	Reconcile(ctx context.Context, dryRun bool) (model.RunRecord, error)
	Dedup(ctx context.Context, dryRun bool) (model.RunRecord, error)
}

// RunFunc 执行一次任务.
type RunFunc func(ctx context.Context, dryRun bool) (model.RunRecord, error)

// Dispatch 返回任务名称对应的运行方法.
func Dispatch(r Runner, name string) (RunFunc, bool) {
	switch name {
	case JobScan:
		return r.Scan, true
	case JobReconcile:
		return r.Reconcile, true
	case JobDedup:
		return r.Dedup, true
	default:
		return nil, false
	}
}

// Func 返回任务名称对应的定时执行函数.
func Func(r Runner, name string) (scheduler.JobFunc, bool) {
	run, ok := Dispatch(r, name)
	if !ok {
		return nil, false
	}

	return func(ctx context.Context) error {
		_, err := run(ctx, false)
		return err
	}, true
}

// RegisterCronJobs 按配置注册定时任务，cron 为空的任务不注册.
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, r Runner, cfg configs.JobsConfig) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if r == nil {
		return errors.New("runner is nil")
	}

	specs := map[string]string{
		JobScan:      cfg.ScanCron,
		JobReconcile: cfg.ReconcileCron,
		JobDedup:     cfg.DedupCron,
	}

	for _, name := range Names() {
		expr := specs[name]
		if expr == "" {
			continue
		}

		fn, _ := Func(r, name)
		if err := sched.AddCron(ctx, name, expr, fn); err != nil {
			return err
		}
	}

	return nil
}
