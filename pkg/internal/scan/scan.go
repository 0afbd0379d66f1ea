// Package scan 实现本地图书馆的增量扫描.
//
// 扫描按字典序遍历根目录，对每个候选文件计算指纹；指纹已在目录中则跳过，
// 否则提取预览、分类、写入目录并送往索引下游. 单个文件的任何失败只记录日志，
// 扫描继续进行.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/arca/pkg/internal/catalog"
	"github.com/yeisme/arca/pkg/internal/classify"
	"github.com/yeisme/arca/pkg/internal/extract"
	"github.com/yeisme/arca/pkg/internal/hasher"
	"github.com/yeisme/arca/pkg/internal/index"
	"github.com/yeisme/arca/pkg/internal/model"
)

// DefaultStoreChars 写入目录的预览字符数.
const DefaultStoreChars = 500

// Deps 扫描依赖的协作者.
type Deps struct {
	Catalog    catalog.Catalog
	Hasher     *hasher.Hasher
	Extractor  *extract.Extractor
	Classifier *classify.Classifier
	Sink       index.Sink // 可为 nil
}

// Options 扫描选项.
type Options struct {
	Root       string
	Extensions map[string]struct{} // 小写且带点，nil 表示不过滤
	Exclude    []string            // 例如隔离目录
	Workers    int
	StoreChars int
}

// Scanner 本地扫描器.
type Scanner struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

// New 创建扫描器.
func New(deps Deps, opts Options, logger zerolog.Logger) (*Scanner, error) {
	if deps.Catalog == nil || deps.Hasher == nil || deps.Extractor == nil || deps.Classifier == nil {
		return nil, errors.New("scan: missing collaborator")
	}

	if opts.Root == "" {
		return nil, errors.New("scan: empty root")
	}

	if deps.Sink == nil {
		deps.Sink = index.Nop{}
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if opts.StoreChars <= 0 {
		opts.StoreChars = DefaultStoreChars
	}

	return &Scanner{deps: deps, opts: opts, logger: logger}, nil
}

// seenSet 已知指纹集合.
// 目录中已有的指纹为 true；本次运行中预留的指纹为 false，处理失败时释放.
type seenSet struct {
	mu sync.Mutex
	m  map[string]bool
}

type reservation int

const (
	reserved reservation = iota
	known                // 运行开始前已在目录中
	repeated             // 本次运行中已出现
)

func (s *seenSet) reserve(fp string) reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cataloged, ok := s.m[fp]; ok {
		if cataloged {
			return known
		}

		return repeated
	}

	s.m[fp] = false

	return reserved
}

func (s *seenSet) release(fp string) {
	s.mu.Lock()
	delete(s.m, fp)
	s.mu.Unlock()
}

// tally 并发安全的计数.
type tally struct {
	mu  sync.Mutex
	sum model.ScanSummary
}

func (t *tally) add(f func(*model.ScanSummary)) {
	t.mu.Lock()
	f(&t.sum)
	t.mu.Unlock()
}

// Run 执行一次扫描. 只有读取目录指纹失败或根目录不可读时返回错误；
// 取消时返回已完成部分的汇总与 ctx.Err().
func (s *Scanner) Run(ctx context.Context) (model.ScanSummary, error) {
	fps, err := s.deps.Catalog.ListFingerprints(ctx)
	if err != nil {
		return model.ScanSummary{}, fmt.Errorf("load catalog fingerprints: %w", err)
	}

	seen := &seenSet{m: make(map[string]bool, len(fps))}
	for _, fp := range fps {
		seen.m[fp] = true
	}

	entries, err := Walk(ctx, s.opts.Root, WalkOptions{
		Extensions: s.opts.Extensions,
		Exclude:    s.opts.Exclude,
		OnError: func(path string, err error) {
			s.logger.Warn().Err(err).Str("path", path).Msg("unreadable entry")
		},
	})
	if err != nil && ctx.Err() == nil {
		return model.ScanSummary{}, fmt.Errorf("walk %s: %w", s.opts.Root, err)
	}

	t := &tally{}
	t.sum.Candidates = len(entries)

	var total int64
	for _, e := range entries {
		total += e.Size
	}

	s.logger.Info().
		Int("candidates", len(entries)).
		Str("size", humanize.Bytes(uint64(total))).
		Int("known", len(fps)).
		Int("workers", s.opts.Workers).
		Msg("scan started")

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			// 已排队但尚未开始的文件在取消后不再处理
			if ctx.Err() != nil {
				return nil
			}

			s.process(ctx, e, seen, t)

			return nil
		})
	}

	_ = g.Wait()

	sum := t.sum
	if ctx.Err() != nil {
		sum.Cancelled = true

		return sum, ctx.Err()
	}

	return sum, nil
}

// process 处理单个文件，所有失败都在这里消化.
func (s *Scanner) process(ctx context.Context, e Entry, seen *seenSet, t *tally) {
	log := s.logger.With().Str("path", e.Rel).Logger()

	fp, size, err := s.deps.Hasher.SumFile(e.Path)
	if err != nil {
		log.Warn().Err(err).Msg("skipping unreadable file")
		t.add(func(m *model.ScanSummary) { m.Errored++ })

		return
	}

	switch seen.reserve(fp) {
	case known:
		log.Debug().Msg("already cataloged")
		t.add(func(m *model.ScanSummary) { m.Skipped++ })

		return
	case repeated:
		log.Debug().Str("fingerprint", fp).Msg("content seen earlier in this run")
		t.add(func(m *model.ScanSummary) { m.Repeated++ })

		return
	case reserved:
	}

	rec, preview := s.build(e, fp, size)

	if err := s.deps.Catalog.Insert(ctx, rec); err != nil {
		if errors.Is(err, catalog.ErrDuplicate) {
			// 并发的同步任务先写入了相同内容
			log.Debug().Msg("inserted concurrently elsewhere")
			t.add(func(m *model.ScanSummary) { m.Skipped++ })

			return
		}

		seen.release(fp)
		log.Error().Err(err).Msg("catalog insert failed")
		t.add(func(m *model.ScanSummary) { m.Errored++ })

		return
	}

	log.Info().
		Uint("id", rec.ID).
		Str("category", rec.Category).
		Str("size", humanize.Bytes(uint64(rec.SizeBytes))).
		Msg("cataloged")
	t.add(func(m *model.ScanSummary) { m.Inserted++ })

	if !preview.Indexable() {
		return
	}

	id := strconv.FormatUint(uint64(rec.ID), 10)
	if err := s.deps.Sink.Index(ctx, id, preview.Text, index.MetadataOf(rec)); err != nil {
		log.Warn().Err(err).Msg("index sink failed")
		t.add(func(m *model.ScanSummary) { m.IndexFailures++ })
	}
}

// build 提取预览并分类，构造目录记录.
func (s *Scanner) build(e Entry, fp string, size int64) (*model.FileRecord, extract.Preview) {
	preview := s.deps.Extractor.Extract(e.Path, e.Ext)

	// 加密或读取失败的文档只按文件名与大小分类
	text := preview.Text
	if preview.Encrypted || preview.Failed {
		text = ""
	}

	cls := s.deps.Classifier.Classify(e.Name, text, size)

	rec := &model.FileRecord{
		RelativePath: e.Rel,
		Filename:     e.Name,
		Title:        strings.TrimSuffix(e.Name, filepath.Ext(e.Name)),
		Format:       e.Ext,
		SizeBytes:    size,
		Category:     cls.Category,
		Tags:         cls.Tags,
		Fingerprint:  fp,
		TextPreview:  extract.Truncate(preview.Text, s.opts.StoreChars),
		Origin:       model.OriginLocal,
	}

	return rec, preview
}
