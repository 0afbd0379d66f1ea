package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/internal/model"
)

// insertChunk 单条 INSERT 语句的最大行数.
const insertChunk = 100

// Gorm 基于 GORM 的持久化目录.
type Gorm struct {
	db *gorm.DB
}

// NewGorm 创建 GORM 目录，db 需已完成迁移.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) FindByFingerprint(ctx context.Context, fp string) (*model.FileRecord, error) {
	return g.first(ctx, "find", fp, "fingerprint = ?", fp)
}

func (g *Gorm) FindByRemoteID(ctx context.Context, id string) (*model.FileRecord, error) {
	return g.first(ctx, "find", id, "remote_id = ?", id)
}

func (g *Gorm) first(ctx context.Context, op, key string, query string, args ...any) (*model.FileRecord, error) {
	var r model.FileRecord

	err := g.db.WithContext(ctx).Where(query, args...).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, errs.E(errs.KindCatalog, op, key, err)
	}

	return &r, nil
}

func (g *Gorm) Insert(ctx context.Context, r *model.FileRecord) error {
	if err := g.db.WithContext(ctx).Create(r).Error; err != nil {
		r.ID = 0
		return errs.E(errs.KindCatalog, "insert", r.Fingerprint, translate(err))
	}

	return nil
}

func (g *Gorm) InsertBatch(ctx context.Context, rs []*model.FileRecord) error {
	if len(rs) == 0 {
		return nil
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rs, insertChunk).Error
	})
	if err != nil {
		for _, r := range rs {
			r.ID = 0
		}

		return errs.E(errs.KindCatalog, "insert_batch", fmt.Sprintf("%d records", len(rs)), translate(err))
	}

	return nil
}

func (g *Gorm) Delete(ctx context.Context, id uint) error {
	res := g.db.WithContext(ctx).Delete(&model.FileRecord{}, id)
	if res.Error != nil {
		return errs.E(errs.KindCatalog, "delete", fmt.Sprint(id), res.Error)
	}

	if res.RowsAffected == 0 {
		return errs.E(errs.KindCatalog, "delete", fmt.Sprint(id), ErrNotFound)
	}

	return nil
}

func (g *Gorm) ListRemoteOrigin(ctx context.Context) ([]model.FileRecord, error) {
	var out []model.FileRecord

	err := g.db.WithContext(ctx).Where("origin = ?", model.OriginRemote).Order("id").Find(&out).Error
	if err != nil {
		return nil, errs.E(errs.KindCatalog, "list_remote", "", err)
	}

	return out, nil
}

func (g *Gorm) ListFingerprints(ctx context.Context) ([]string, error) {
	var fps []string

	err := g.db.WithContext(ctx).Model(&model.FileRecord{}).Order("fingerprint").Pluck("fingerprint", &fps).Error
	if err != nil {
		return nil, errs.E(errs.KindCatalog, "list_fingerprints", "", err)
	}

	return fps, nil
}

func (g *Gorm) List(ctx context.Context) ([]model.FileRecord, error) {
	var out []model.FileRecord

	if err := g.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, errs.E(errs.KindCatalog, "list", "", err)
	}

	return out, nil
}

// translate 将唯一约束冲突统一为 ErrDuplicate.
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}

	return err
}
