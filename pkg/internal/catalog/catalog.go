// Package catalog 定义目录（已知文件清单）的存取接口及其实现.
//
// 核心流程只依赖 Catalog 接口：按指纹或远端 ID 查找、插入、删除与列举远端记录.
// 指纹在通过插入路径创建的记录中唯一；远端 ID 在远端记录中唯一.
package catalog

import (
	"context"
	"errors"

	"github.com/yeisme/arca/pkg/internal/model"
)

var (
	// ErrNotFound 记录不存在.
	ErrNotFound = errors.New("catalog: record not found")
	// ErrDuplicate 指纹或远端 ID 已存在.
	ErrDuplicate = errors.New("catalog: duplicate fingerprint or remote id")
)

// Catalog 目录存取接口.
type Catalog interface {
	// FindByFingerprint 按内容指纹查找，不存在返回 ErrNotFound.
	FindByFingerprint(ctx context.Context, fp string) (*model.FileRecord, error)
	// FindByRemoteID 按远端 ID 查找，不存在返回 ErrNotFound.
	FindByRemoteID(ctx context.Context, id string) (*model.FileRecord, error)
	// Insert 插入一条记录并回填 ID，冲突返回 ErrDuplicate.
	Insert(ctx context.Context, r *model.FileRecord) error
	// InsertBatch 在同一事务中插入一批记录，任一失败则整批不生效.
	InsertBatch(ctx context.Context, rs []*model.FileRecord) error
	// Delete 按记录 ID 删除.
	Delete(ctx context.Context, id uint) error
	// ListRemoteOrigin 列出所有远端来源记录.
	ListRemoteOrigin(ctx context.Context) ([]model.FileRecord, error)
	// ListFingerprints 列出全部指纹.
	ListFingerprints(ctx context.Context) ([]string, error)
	// List 列出全部记录，按 ID 升序.
	List(ctx context.Context) ([]model.FileRecord, error)
}

// Exists 报告指纹是否已在目录中.
func Exists(ctx context.Context, c Catalog, fp string) (bool, error) {
	_, err := c.FindByFingerprint(ctx, fp)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Snapshot 将 src 的全部记录复制到新的内存目录，用于演练模式.
func Snapshot(ctx context.Context, src Catalog) (*Memory, error) {
	records, err := src.List(ctx)
	if err != nil {
		return nil, err
	}

	m := NewMemory()
	if err := m.Load(records); err != nil {
		return nil, err
	}

	return m, nil
}
