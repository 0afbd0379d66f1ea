package remote

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	minio "github.com/minio/minio-go/v7"

	"github.com/yeisme/arca/pkg/internal/storage/s3"
)

// MinIO 以存储桶前缀作为"文件夹"的远端来源.
// 对象键即远端 ID；单段上传对象的 ETag 为内容 md5，可直接作为摘要.
type MinIO struct {
	cli      *s3.Client
	pageSize int
}

// NewMinIO 创建 MinIO 来源.
func NewMinIO(cli *s3.Client, pageSize int) *MinIO {
	if pageSize <= 0 {
		pageSize = 1000
	}

	return &MinIO{cli: cli, pageSize: pageSize}
}

// ListPage 列举前缀下的对象，pageToken 为上一页最后一个对象键.
func (m *MinIO) ListPage(ctx context.Context, folder, pageToken string) (Page, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := folder
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	objects := m.cli.ListObjects(listCtx, m.cli.Bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: pageToken,
	})

	var page Page

	for obj := range objects {
		if obj.Err != nil {
			return Page{}, fmt.Errorf("minio list: %w", obj.Err)
		}

		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		if len(page.Items) == m.pageSize {
			page.NextToken = page.Items[len(page.Items)-1].ID
			break
		}

		page.Items = append(page.Items, objectItem(obj))
	}

	return page, nil
}

// Open 读取对象.
func (m *MinIO) Open(ctx context.Context, id string) (*Stream, error) {
	obj, err := m.cli.GetObject(ctx, m.cli.Bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", id, err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("minio stat %s: %w", id, err)
	}

	ct := info.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(id))
	}

	return &Stream{ReadCloser: obj, MimeType: ct, Filename: path.Base(id)}, nil
}

func objectItem(obj minio.ObjectInfo) Item {
	ct := obj.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(obj.Key))
	}

	return Item{
		ID:       obj.Key,
		Name:     path.Base(obj.Key),
		MimeType: ct,
		Size:     obj.Size,
		Digest:   etagDigest(obj.ETag),
	}
}

// etagDigest 返回可作为 md5 的 ETag；分段上传的 ETag 含 "-"，不是内容摘要.
func etagDigest(etag string) string {
	etag = strings.Trim(etag, `"`)
	if len(etag) != 32 || strings.Contains(etag, "-") {
		return ""
	}

	return strings.ToLower(etag)
}
