package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/index"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/internal/remote"
)

// Inventory 导出的目录清单.
type Inventory struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Version     string             `json:"version"`
	Count       int                `json:"count"`
	Records     []model.FileRecord `json:"records"`
}

// Open 打开远端文件的字节流，调用方负责关闭.
func (a *App) Open(ctx context.Context, remoteID string) (*remote.Stream, error) {
	if a.source == nil {
		return nil, ErrNoRemote
	}

	return a.source.Open(ctx, remoteID)
}

// Search 在本地全文索引中检索.
func (a *App) Search(ctx context.Context, q string, size int) ([]index.Hit, error) {
	if a.bleve == nil {
		return nil, ErrNoIndex
	}

	return a.bleve.Search(ctx, q, size)
}

// Export 把目录全部记录以 JSON 写入 w.
func (a *App) Export(ctx context.Context, w io.Writer) (int, error) {
	records, err := a.catalog.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list catalog: %w", err)
	}

	inv := Inventory{
		GeneratedAt: time.Now().UTC(),
		Version:     configs.AppVersion,
		Count:       len(records),
		Records:     records,
	}

	enc := sonic.ConfigStd.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(inv); err != nil {
		return 0, fmt.Errorf("encode inventory: %w", err)
	}

	return len(records), nil
}

// Runs 返回每个任务最近一次运行记录.
func (a *App) Runs(ctx context.Context) ([]model.RunRecord, error) {
	return a.runs.List(ctx)
}

// StartIndexConsumer 订阅索引队列，在后台把请求写入本地全文索引，直到 ctx 结束.
// 订阅在返回前完成；done 在消费者退出后关闭. 只有 index.queue.consume 启用时可用.
func (a *App) StartIndexConsumer(ctx context.Context) (<-chan struct{}, error) {
	if !a.consumesQueue() {
		return nil, errors.New("index queue consumer not enabled")
	}

	msgs, err := a.mq.Subscribe(ctx, a.cfg.Index.Queue.Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", a.cfg.Index.Queue.Topic, err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		index.Consume(ctx, msgs, a.bleve, a.logger.With().Str("component", "index-consumer").Logger())
	}()

	return done, nil
}
