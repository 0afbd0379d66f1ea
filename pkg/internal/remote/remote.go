// Package remote 定义远端文件来源（列举 + 字节流读取）及其实现.
package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/yeisme/arca/pkg/internal/errs"
)

// Item 远端列举中的一个文件.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	// Digest 远端提供的 md5 十六进制摘要；没有固定字节表示的原生文档为空
	Digest string `json:"digest,omitempty"`
}

// Page 一页列举结果.
type Page struct {
	Items     []Item
	NextToken string // 空表示最后一页
}

// Stream 远端文件字节流，调用方负责关闭.
type Stream struct {
	io.ReadCloser

	MimeType string
	Filename string
}

// Source 远端文件来源.
type Source interface {
	// ListPage 列举文件夹中的一页文件，pageToken 为空表示第一页.
	ListPage(ctx context.Context, folder, pageToken string) (Page, error)
	// Open 打开文件字节流；失败总是返回非 nil 错误，不会以空流表示失败.
	Open(ctx context.Context, id string) (*Stream, error)
}

// maxPages 防止远端返回循环 token 时无限列举.
const maxPages = 100000

// ListAll 列举文件夹的全部分页并物化为一个列表.
// 任一页失败或 ctx 取消都会中止并返回 errs.ErrRemoteListing 种类的错误.
func ListAll(ctx context.Context, src Source, folder string) ([]Item, error) {
	var (
		items []Item
		token string
		seen  = map[string]struct{}{}
	)

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, errs.E(errs.KindRemoteListing, "list", folder, err)
		}

		if page >= maxPages {
			return nil, errs.E(errs.KindRemoteListing, "list", folder, fmt.Errorf("too many pages"))
		}

		p, err := src.ListPage(ctx, folder, token)
		if err != nil {
			return nil, errs.E(errs.KindRemoteListing, "list", folder, err)
		}

		items = append(items, p.Items...)

		if p.NextToken == "" {
			return items, nil
		}

		if _, dup := seen[p.NextToken]; dup {
			return nil, errs.E(errs.KindRemoteListing, "list", folder, fmt.Errorf("repeated page token %q", p.NextToken))
		}

		seen[p.NextToken] = struct{}{}
		token = p.NextToken
	}
}
