package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/internal/catalog"
	"github.com/yeisme/arca/pkg/internal/dedup"
	"github.com/yeisme/arca/pkg/internal/index"
	"github.com/yeisme/arca/pkg/internal/jobs"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/internal/reconcile"
	"github.com/yeisme/arca/pkg/internal/scan"
	nlog "github.com/yeisme/arca/pkg/log"
	"github.com/yeisme/arca/pkg/metrics"
	"github.com/yeisme/arca/pkg/queue"
	"github.com/yeisme/arca/pkg/tracing"
)

// ErrBusy 同类任务正在运行（可能在另一个进程中）.
var ErrBusy = errors.New("job already running")

// saveTimeout 保存运行记录与发布事件的超时.
const saveTimeout = 5 * time.Second

type runFunc func(ctx context.Context, logger zerolog.Logger, rec *model.RunRecord) error

// lock 获取任务的文件锁，同一任务在多个进程间互斥.
func (a *App) lock(job string) (func(), error) {
	dir := a.cfg.Server.LockDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(filepath.Join(dir, job+".lock"))

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", job, err)
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", job, ErrBusy)
	}

	return func() { _ = fl.Unlock() }, nil
}

// Busy 报告任务的文件锁是否被占用.
func (a *App) Busy(job string) bool {
	unlock, err := a.lock(job)
	if err != nil {
		return errors.Is(err, ErrBusy)
	}

	unlock()

	return false
}

// run 执行一次批处理：加锁、追踪、指标、保存运行记录并发布完成事件.
func (a *App) run(ctx context.Context, job string, dryRun bool, fn runFunc) (model.RunRecord, error) {
	runID := nlog.NewRunID()
	logger := nlog.ForRun(job, runID)
	rec := model.RunRecord{Job: job, RunID: runID, StartedAt: time.Now(), DryRun: dryRun}

	unlock, err := a.lock(job)
	if err != nil {
		logger.Warn().Err(err).Msg("run skipped")
		return rec, err
	}
	defer unlock()

	ctx, span := tracing.StartRun(ctx, job, runID)

	logger.Info().Bool("dry_run", dryRun).Msg("run started")

	err = fn(ctx, logger, &rec)

	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Error = err.Error()
	}

	tracing.EndRun(span, rec, err)
	metrics.ObserveRun(rec)
	a.finish(ctx, logger, rec)

	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err)
	}

	ev.Dur("duration", rec.Duration).Str("status", metrics.RunStatus(rec)).Msg("run finished")

	return rec, err
}

// finish 保存运行记录，启用 MQ 时发布完成事件. 失败只记录日志.
func (a *App) finish(ctx context.Context, logger zerolog.Logger, rec model.RunRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if a.runs != nil {
		if err := a.runs.Save(ctx, rec); err != nil {
			logger.Warn().Err(err).Msg("save run record failed")
		}
	}

	if a.mq != nil {
		if err := queue.PublishRunCompleted(a.mq.Publisher(), rec,
			queue.WithRunID(rec.RunID), queue.WithProducer("arca")); err != nil {
			logger.Warn().Err(err).Msg("publish run completed failed")
		}
	}
}

// workingCatalog 演练模式返回目录快照与空索引下游，不修改真实目录.
func (a *App) workingCatalog(ctx context.Context, dryRun bool) (catalog.Catalog, index.Sink, error) {
	if !dryRun {
		return a.catalog, a.sink, nil
	}

	snap, err := catalog.Snapshot(ctx, a.catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot catalog: %w", err)
	}

	return snap, index.Nop{}, nil
}

// Scan 扫描本地图书馆.
func (a *App) Scan(ctx context.Context, dryRun bool) (model.RunRecord, error) {
	return a.run(ctx, jobs.JobScan, dryRun, func(ctx context.Context, logger zerolog.Logger, rec *model.RunRecord) error {
		cat, sink, err := a.workingCatalog(ctx, dryRun)
		if err != nil {
			return err
		}

		lib := a.cfg.Library

		sc, err := scan.New(scan.Deps{
			Catalog:    cat,
			Hasher:     a.hasher,
			Extractor:  a.extractor,
			Classifier: a.classifier,
			Sink:       sink,
		}, scan.Options{
			Root:       lib.Root,
			Extensions: lib.ExtensionSet(),
			Exclude:    []string{a.cfg.Quarantine.ResolveDir(lib.Root)},
			Workers:    lib.Workers,
			StoreChars: lib.Preview.StoreChars,
		}, logger)
		if err != nil {
			return err
		}

		sum, err := sc.Run(ctx)
		rec.Scan = &sum

		logger.Info().
			Int("candidates", sum.Candidates).
			Int("inserted", sum.Inserted).
			Int("skipped", sum.Skipped).
			Int("repeated", sum.Repeated).
			Int("errored", sum.Errored).
			Int("index_failures", sum.IndexFailures).
			Msg("scan summary")

		return err
	})
}

// Reconcile 与远端文件夹同步.
func (a *App) Reconcile(ctx context.Context, dryRun bool) (model.RunRecord, error) {
	return a.run(ctx, jobs.JobReconcile, dryRun, func(ctx context.Context, logger zerolog.Logger, rec *model.RunRecord) error {
		if a.source == nil {
			return ErrNoRemote
		}

		cat, _, err := a.workingCatalog(ctx, dryRun)
		if err != nil {
			return err
		}

		r, err := reconcile.New(reconcile.Deps{
			Catalog:    cat,
			Source:     a.source,
			Classifier: a.classifier,
		}, reconcile.Options{
			Folder:    a.cfg.Remote.Folder,
			BatchSize: a.cfg.Remote.BatchSize,
		}, logger)
		if err != nil {
			return err
		}

		sum, err := r.Run(ctx)
		rec.Reconcile = &sum

		logger.Info().
			Int("listed", sum.Listed).
			Int("deleted", sum.Deleted).
			Int("inserted", sum.Inserted).
			Int("skipped", sum.Skipped).
			Int("errored", sum.Errored).
			Msg("reconcile summary")

		return err
	})
}

// Dedup 把重复文件移入隔离目录.
func (a *App) Dedup(ctx context.Context, dryRun bool) (model.RunRecord, error) {
	return a.run(ctx, jobs.JobDedup, dryRun, func(ctx context.Context, logger zerolog.Logger, rec *model.RunRecord) error {
		root := a.cfg.Library.Root

		r, err := dedup.New(dedup.Options{
			Root:          root,
			QuarantineDir: a.cfg.Quarantine.ResolveDir(root),
			ReportPath:    a.cfg.Quarantine.ResolveReport(root),
			DryRun:        dryRun,
		}, logger)
		if err != nil {
			return err
		}

		sum, err := r.Run(ctx)
		rec.Dedup = &sum

		logger.Info().
			Int("files", sum.Files).
			Int("groups", sum.Groups).
			Int("moved", sum.Moved).
			Int("failed", sum.Failed).
			Str("reclaimed", humanize.IBytes(uint64(max(sum.BytesReclaimed, 0)))).
			Str("report", sum.ReportPath).
			Msg("dedup summary")

		return err
	})
}
