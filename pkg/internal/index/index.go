// Package index 定义目录记录的全文索引下游（IndexSink）及其实现.
//
// 索引失败只影响索引本身，调用方记录日志后继续，目录写入不回滚.
package index

import (
	"context"
	"errors"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/internal/model"
)

// Metadata 随文本一起写入索引的记录元数据.
type Metadata struct {
	Title    string   `json:"title,omitempty"`
	Author   string   `json:"author,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Format   string   `json:"format,omitempty"`
	Origin   string   `json:"origin,omitempty"`
}

// MetadataOf 从目录记录提取索引元数据.
func MetadataOf(r *model.FileRecord) Metadata {
	return Metadata{
		Title:    r.Title,
		Author:   r.Author,
		Category: r.Category,
		Tags:     append([]string(nil), r.Tags...),
		Format:   r.Format,
		Origin:   string(r.Origin),
	}
}

// Sink 接收新目录记录的全文.
type Sink interface {
	Index(ctx context.Context, recordID, text string, meta Metadata) error
}

// Nop 丢弃所有请求.
type Nop struct{}

// Index 实现 Sink.
func (Nop) Index(context.Context, string, string, Metadata) error { return nil }

// Multi 依次写入多个下游，任一失败都会返回合并后的错误，但不会跳过其余下游.
type Multi []Sink

// Index 实现 Sink.
func (m Multi) Index(ctx context.Context, recordID, text string, meta Metadata) error {
	var all []error

	for _, s := range m {
		if err := s.Index(ctx, recordID, text, meta); err != nil {
			all = append(all, err)
		}
	}

	if len(all) == 0 {
		return nil
	}

	return errs.E(errs.KindIndexSink, "index", recordID, errors.Join(all...))
}

// Combine 合并下游，忽略 nil，单个时直接返回，空时返回 Nop.
func Combine(sinks ...Sink) Sink {
	var out Multi

	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}

	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	default:
		return out
	}
}
