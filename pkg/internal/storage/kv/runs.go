package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/arca/pkg/internal/model"
)

const runKeyPrefix = "runs."

// Runs 在 KVStore 之上保存每个任务最近一次运行的记录.
type Runs struct {
	store KVStore
	ttl   time.Duration
}

// NewRuns 创建运行记录存储.
func NewRuns(store KVStore, ttl time.Duration) *Runs {
	return &Runs{store: store, ttl: ttl}
}

func runKey(job string) string {
	return runKeyPrefix + job + ".last"
}

// Save 覆盖任务的最近一次运行记录.
func (r *Runs) Save(ctx context.Context, rec model.RunRecord) error {
	if rec.Job == "" {
		return errors.New("run record without job")
	}

	b, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	return r.store.Set(ctx, runKey(rec.Job), b, r.ttl)
}

// Last 返回任务最近一次运行记录，没有时返回 ErrNotFound.
func (r *Runs) Last(ctx context.Context, job string) (model.RunRecord, error) {
	var rec model.RunRecord

	b, err := r.store.Get(ctx, runKey(job))
	if err != nil {
		return rec, err
	}

	if err := sonic.Unmarshal(b, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal run record %s: %w", job, err)
	}

	return rec, nil
}

// List 返回所有任务的最近运行记录，按任务名排序.
func (r *Runs) List(ctx context.Context) ([]model.RunRecord, error) {
	keys, err := r.store.Keys(ctx, runKeyPrefix)
	if err != nil {
		return nil, err
	}

	slices.Sort(keys)

	out := make([]model.RunRecord, 0, len(keys))

	for _, k := range keys {
		job := strings.TrimSuffix(strings.TrimPrefix(k, runKeyPrefix), ".last")

		rec, err := r.Last(ctx, job)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		out = append(out, rec)
	}

	return out, nil
}

// Close 关闭底层存储.
func (r *Runs) Close() error {
	return r.store.Close()
}
