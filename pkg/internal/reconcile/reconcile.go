// Package reconcile 让目录中的远端记录与远端文件夹的列举保持一致.
//
// 远端是唯一事实来源：第一阶段删除远端已不存在的记录，第二阶段为尚未登记的
// 远端文件插入记录. 列举失败时整个同步中止，不做任何修改.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/internal/catalog"
	"github.com/yeisme/arca/pkg/internal/classify"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/internal/remote"
)

const (
	// DefaultBatchSize 每批提交的记录数.
	DefaultBatchSize = 100
	// SyncedPreview 远端记录的描述文本.
	SyncedPreview = "Sincronizado desde la nube."
	// NativeFormat 没有扩展名的云端原生文档的格式.
	NativeFormat = "gdoc"
)

// Deps 同步依赖的协作者.
type Deps struct {
	Catalog    catalog.Catalog
	Source     remote.Source
	Classifier *classify.Classifier
}

// Options 同步选项.
type Options struct {
	Folder    string
	BatchSize int
}

// Reconciler 远端同步器.
type Reconciler struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

// New 创建同步器.
func New(deps Deps, opts Options, logger zerolog.Logger) (*Reconciler, error) {
	if deps.Catalog == nil || deps.Source == nil || deps.Classifier == nil {
		return nil, errors.New("reconcile: missing collaborator")
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	return &Reconciler{deps: deps, opts: opts, logger: logger}, nil
}

// Run 执行一次同步.
func (r *Reconciler) Run(ctx context.Context) (model.ReconcileSummary, error) {
	var sum model.ReconcileSummary

	items, err := remote.ListAll(ctx, r.deps.Source, r.opts.Folder)
	if err != nil {
		sum.Cancelled = ctx.Err() != nil
		return sum, err
	}

	sum.Listed = len(items)

	r.logger.Info().Int("listed", sum.Listed).Str("folder", r.opts.Folder).Msg("remote listing complete")

	if err := r.prune(ctx, items, &sum); err != nil {
		return sum, err
	}

	if err := r.add(ctx, items, &sum); err != nil {
		return sum, err
	}

	return sum, nil
}

// recordRemoteID 远端记录的远端 ID，旧数据没有 RemoteID 时退回 RelativePath.
func recordRemoteID(rec *model.FileRecord) string {
	if id := rec.RemoteKey(); id != "" {
		return id
	}

	return rec.RelativePath
}

// prune 删除指纹与远端 ID 都不在列举中的远端记录.
func (r *Reconciler) prune(ctx context.Context, items []remote.Item, sum *model.ReconcileSummary) error {
	digests := make(map[string]struct{}, len(items))
	ids := make(map[string]struct{}, len(items))

	for _, it := range items {
		ids[it.ID] = struct{}{}
		if it.Digest != "" {
			digests[it.Digest] = struct{}{}
		}
	}

	records, err := r.deps.Catalog.ListRemoteOrigin(ctx)
	if err != nil {
		return fmt.Errorf("list remote records: %w", err)
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			sum.Cancelled = true
			return err
		}

		rec := &records[i]

		if _, ok := digests[rec.Fingerprint]; ok {
			continue
		}

		if _, ok := ids[recordRemoteID(rec)]; ok {
			continue
		}

		if err := r.deps.Catalog.Delete(ctx, rec.ID); err != nil {
			r.logger.Error().Err(err).Uint("id", rec.ID).Str("remote_id", recordRemoteID(rec)).Msg("delete failed")

			sum.Errored++

			continue
		}

		r.logger.Info().Uint("id", rec.ID).Str("filename", rec.Filename).Msg("removed, gone from remote")

		sum.Deleted++
	}

	return nil
}

// add 插入尚未登记的远端文件，按批提交.
func (r *Reconciler) add(ctx context.Context, items []remote.Item, sum *model.ReconcileSummary) error {
	records, err := r.deps.Catalog.ListRemoteOrigin(ctx)
	if err != nil {
		return fmt.Errorf("list remote records: %w", err)
	}

	knownIDs := make(map[string]struct{}, len(records))
	for i := range records {
		knownIDs[recordRemoteID(&records[i])] = struct{}{}
	}

	fps, err := r.deps.Catalog.ListFingerprints(ctx)
	if err != nil {
		return fmt.Errorf("list fingerprints: %w", err)
	}

	knownFPs := make(map[string]struct{}, len(fps))
	for _, fp := range fps {
		knownFPs[fp] = struct{}{}
	}

	batch := make([]*model.FileRecord, 0, r.opts.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}

		if err := r.deps.Catalog.InsertBatch(ctx, batch); err != nil {
			r.logger.Error().Err(err).Int("records", len(batch)).Msg("batch insert failed")

			sum.Errored += len(batch)
		} else {
			r.logger.Debug().Int("records", len(batch)).Msg("batch committed")

			sum.Inserted += len(batch)
		}

		batch = batch[:0]
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			// 未提交的部分批次直接丢弃
			sum.Cancelled = true
			return err
		}

		if _, ok := knownIDs[it.ID]; ok {
			sum.Skipped++
			continue
		}

		if it.Digest != "" {
			if _, ok := knownFPs[it.Digest]; ok {
				sum.Skipped++
				continue
			}
		}

		rec := r.record(it)
		knownIDs[it.ID] = struct{}{}
		knownFPs[rec.Fingerprint] = struct{}{}

		batch = append(batch, rec)
		if len(batch) >= r.opts.BatchSize {
			flush()
		}
	}

	flush()

	return nil
}

// record 构造远端记录. 没有摘要的条目使用由远端 ID 派生的合成指纹.
func (r *Reconciler) record(it remote.Item) *model.FileRecord {
	fp := it.Digest
	if fp == "" {
		fp = model.SyntheticFingerprint(it.ID)
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(it.Name), "."))
	if format == "" {
		format = NativeFormat
	}

	cls := r.deps.Classifier.Classify(it.Name, "", it.Size)

	return &model.FileRecord{
		RelativePath: it.ID,
		Filename:     it.Name,
		Title:        strings.TrimSuffix(it.Name, filepath.Ext(it.Name)),
		Format:       format,
		SizeBytes:    it.Size,
		Category:     cls.Category,
		Tags:         cls.Tags,
		Fingerprint:  fp,
		TextPreview:  SyncedPreview,
		Origin:       model.OriginRemote,
		RemoteID:     model.StringPtr(it.ID),
	}
}
