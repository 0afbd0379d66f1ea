// Package dedup 找出目录树中内容完全相同的文件，保留一个并把其余移入隔离目录.
//
// 这是独立于扫描的批处理，直接作用于文件系统而不是目录记录.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/internal/hasher"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/internal/scan"
)

// PrefixLen 隔离文件名与报告中使用的指纹前缀长度.
const PrefixLen = 8

// Options 去重选项.
type Options struct {
	Root          string
	QuarantineDir string
	ReportPath    string
	DryRun        bool
}

// Group 内容相同的一组文件，成员按遍历顺序排列.
type Group struct {
	Fingerprint string
	Members     []scan.Entry
}

// Prefix 返回指纹前缀.
func (g Group) Prefix() string {
	if len(g.Fingerprint) < PrefixLen {
		return g.Fingerprint
	}

	return g.Fingerprint[:PrefixLen]
}

// Relocation 一个非保留成员的处理结果.
type Relocation struct {
	Path string // 相对根目录
	Name string // 隔离目录中的文件名
	Size int64
	Err  error
}

// Result 一组的处理结果.
type Result struct {
	Fingerprint string
	Survivor    string
	Relocations []Relocation
	DryRun      bool
}

// Resolver 重复文件处理器.
type Resolver struct {
	opts   Options
	sha    *hasher.Hasher
	logger zerolog.Logger
}

// New 创建 Resolver.
func New(opts Options, logger zerolog.Logger) (*Resolver, error) {
	if opts.Root == "" || opts.QuarantineDir == "" {
		return nil, errors.New("dedup: root and quarantine dir are required")
	}

	return &Resolver{opts: opts, sha: hasher.MustNew(hasher.SHA256), logger: logger}, nil
}

// Run 查找重复组、移动非保留成员并写入报告.
// 单个文件的移动失败记录在报告中，不影响其余成员与分组.
func (r *Resolver) Run(ctx context.Context) (model.DedupSummary, error) {
	var sum model.DedupSummary

	entries, err := scan.Walk(ctx, r.opts.Root, scan.WalkOptions{
		Exclude: []string{r.opts.QuarantineDir, r.opts.ReportPath},
		OnError: func(path string, err error) {
			r.logger.Warn().Err(err).Str("path", path).Msg("unreadable entry")
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			sum.Cancelled = true
			return sum, ctx.Err()
		}

		return sum, fmt.Errorf("walk %s: %w", r.opts.Root, err)
	}

	sum.Files = len(entries)

	groups, hashErrs, err := r.FindGroups(ctx, entries)
	sum.HashErrors = hashErrs

	if err != nil {
		sum.Cancelled = true
		return sum, err
	}

	sum.Groups = len(groups)
	sum.UniqueContents = sum.Files - hashErrs

	for _, g := range groups {
		sum.UniqueContents -= len(g.Members) - 1
	}

	r.logger.Info().
		Int("files", sum.Files).
		Int("unique", sum.UniqueContents).
		Int("groups", sum.Groups).
		Msg("duplicate analysis done")

	if len(groups) == 0 {
		return sum, nil
	}

	if !r.opts.DryRun {
		if err := os.MkdirAll(r.opts.QuarantineDir, 0o755); err != nil {
			return sum, errs.E(errs.KindRelocation, "create quarantine", r.opts.QuarantineDir, err)
		}
	}

	names := newNamer(r.opts.QuarantineDir)
	results := make([]Result, 0, len(groups))

	for _, g := range groups {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}

		res := r.resolve(g, names)
		for _, rel := range res.Relocations {
			if rel.Err != nil {
				sum.Failed++
				continue
			}

			sum.Moved++
			sum.BytesReclaimed += rel.Size
		}

		results = append(results, res)
	}

	if err := r.writeReport(results); err != nil {
		return sum, err
	}

	sum.ReportPath = r.opts.ReportPath

	r.logger.Info().
		Int("moved", sum.Moved).
		Int("failed", sum.Failed).
		Str("reclaimed", humanize.Bytes(uint64(sum.BytesReclaimed))).
		Str("report", sum.ReportPath).
		Bool("dry_run", r.opts.DryRun).
		Msg("quarantine done")

	if sum.Cancelled {
		return sum, ctx.Err()
	}

	return sum, nil
}

// FindGroups 按大小分桶、快速哈希预筛，再以 SHA-256 确认，返回多于一个成员的组.
// 组按首个成员的遍历顺序排列. 无法读取的文件计入 hashErrs 并被忽略.
func (r *Resolver) FindGroups(ctx context.Context, entries []scan.Entry) ([]Group, int, error) {
	bySize := make(map[int64][]int)
	for i, e := range entries {
		bySize[e.Size] = append(bySize[e.Size], i)
	}

	hashErrs := 0
	full := make(map[string][]int)

	for _, idxs := range bySize {
		if len(idxs) < 2 {
			continue
		}

		byQuick := make(map[uint64][]int, len(idxs))

		for _, i := range idxs {
			if err := ctx.Err(); err != nil {
				return nil, hashErrs, err
			}

			q, err := hasher.QuickSum(entries[i].Path)
			if err != nil {
				r.logger.Warn().Err(err).Msg("skipping unreadable file")

				hashErrs++

				continue
			}

			byQuick[q] = append(byQuick[q], i)
		}

		for _, cand := range byQuick {
			if len(cand) < 2 {
				continue
			}

			for _, i := range cand {
				if err := ctx.Err(); err != nil {
					return nil, hashErrs, err
				}

				fp, _, err := r.sha.SumFile(entries[i].Path)
				if err != nil {
					r.logger.Warn().Err(err).Msg("skipping unreadable file")

					hashErrs++

					continue
				}

				full[fp] = append(full[fp], i)
			}
		}
	}

	type ordered struct {
		first int
		group Group
	}

	var out []ordered

	for fp, idxs := range full {
		if len(idxs) < 2 {
			continue
		}

		slices.Sort(idxs)

		g := Group{Fingerprint: fp, Members: make([]scan.Entry, 0, len(idxs))}
		for _, i := range idxs {
			g.Members = append(g.Members, entries[i])
		}

		out = append(out, ordered{first: idxs[0], group: g})
	}

	slices.SortFunc(out, func(a, b ordered) int { return a.first - b.first })

	groups := make([]Group, len(out))
	for i, o := range out {
		groups[i] = o.group
	}

	return groups, hashErrs, nil
}

// Survivor 返回保留成员的下标：文件名（按 rune 计）最短者，相同长度取遍历顺序靠前者.
func Survivor(members []scan.Entry) int {
	best := 0

	for i := 1; i < len(members); i++ {
		if utf8.RuneCountInString(members[i].Name) < utf8.RuneCountInString(members[best].Name) {
			best = i
		}
	}

	return best
}

// resolve 处理一组，移动除保留成员外的所有文件.
func (r *Resolver) resolve(g Group, names *namer) Result {
	keep := Survivor(g.Members)
	res := Result{Fingerprint: g.Fingerprint, Survivor: g.Members[keep].Rel, DryRun: r.opts.DryRun}

	for i, m := range g.Members {
		if i == keep {
			continue
		}

		rel := Relocation{Path: m.Rel, Size: m.Size}

		name, err := names.next(g.Prefix(), m.Name)
		if err != nil {
			rel.Err = err
		} else {
			rel.Name = name
			if !r.opts.DryRun {
				rel.Err = move(m.Path, filepath.Join(r.opts.QuarantineDir, name))
			}
		}

		if rel.Err != nil {
			r.logger.Error().
				Err(errs.E(errs.KindRelocation, "quarantine", m.Rel, rel.Err)).
				Msg("relocation failed")
		} else {
			r.logger.Info().Str("path", m.Rel).Str("name", rel.Name).Bool("dry_run", r.opts.DryRun).Msg("quarantined")
		}

		res.Relocations = append(res.Relocations, rel)
	}

	return res
}

func (r *Resolver) writeReport(results []Result) error {
	if r.opts.ReportPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.opts.ReportPath), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	f, err := os.Create(r.opts.ReportPath)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if err := WriteReport(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}

	return f.Close()
}
