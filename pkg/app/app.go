// Package app 按配置组装目录、索引、远端来源与运行状态存储，并提供批处理入口.
//
// Example:
//
//	a, err := app.New(ctx, *configs.GetConfig())
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
//	run, err := a.Scan(ctx, false)
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/catalog"
	"github.com/yeisme/arca/pkg/internal/classify"
	"github.com/yeisme/arca/pkg/internal/extract"
	"github.com/yeisme/arca/pkg/internal/hasher"
	"github.com/yeisme/arca/pkg/internal/index"
	"github.com/yeisme/arca/pkg/internal/remote"
	"github.com/yeisme/arca/pkg/internal/storage/db"
	"github.com/yeisme/arca/pkg/internal/storage/kv"
	"github.com/yeisme/arca/pkg/internal/storage/mq"
	"github.com/yeisme/arca/pkg/internal/storage/s3"
	nlog "github.com/yeisme/arca/pkg/log"
	"github.com/yeisme/arca/pkg/metrics"
)

var (
	// ErrNoRemote 未配置远端来源.
	ErrNoRemote = errors.New("remote source not configured")
	// ErrNoIndex 未启用本地全文索引.
	ErrNoIndex = errors.New("full text index not enabled")
)

// App 持有一次进程生命周期内的全部协作者.
type App struct {
	cfg    configs.AppConfig
	logger zerolog.Logger

	db         *db.Client
	catalog    catalog.Catalog
	hasher     *hasher.Hasher
	extractor  *extract.Extractor
	classifier *classify.Classifier
	bleve      *index.Bleve
	mq         *mq.Client
	sink       index.Sink
	source     remote.Source
	store      kv.KVStore
	runs       *kv.Runs
}

// Option 替换默认构建的协作者.
type Option func(*App)

// WithCatalog 使用给定目录，不再连接数据库.
func WithCatalog(c catalog.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithSource 使用给定远端来源，不做限流与熔断包装.
func WithSource(src remote.Source) Option {
	return func(a *App) { a.source = src }
}

// WithStateStore 使用给定运行状态存储.
func WithStateStore(store kv.KVStore) Option {
	return func(a *App) { a.store = store }
}

// New 根据配置创建 App. 失败时已打开的资源会被关闭.
func New(ctx context.Context, cfg configs.AppConfig, opts ...Option) (a *App, err error) {
	a = &App{
		cfg:    cfg,
		logger: nlog.Logger().With().Str("component", "app").Logger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if err = a.initCatalog(ctx); err != nil {
		return a, err
	}

	if a.hasher, err = hasher.New(hasher.Algorithm(cfg.Library.Hash)); err != nil {
		return a, err
	}

	a.extractor = extract.New(extract.Options{
		MaxPages:      cfg.Library.Preview.MaxPages,
		MaxParagraphs: cfg.Library.Preview.MaxParagraphs,
		MaxChars:      cfg.Library.Preview.MaxChars,
	}, a.logger.With().Str("component", "extract").Logger())
	a.classifier = classify.New(classify.WithSizeThreshold(cfg.Library.Classify.SizeThreshold))

	if err = a.initMQ(ctx); err != nil {
		return a, err
	}

	if err = a.initIndex(); err != nil {
		return a, err
	}

	if err = a.initSource(ctx); err != nil {
		return a, err
	}

	if err = a.initState(ctx); err != nil {
		return a, err
	}

	return a, nil
}

func (a *App) initCatalog(ctx context.Context) error {
	if a.catalog != nil {
		return nil
	}

	client, err := db.New(ctx, a.cfg.DB, db.Options{
		Metrics: a.cfg.Metrics.Enabled && a.cfg.Metrics.DBMetrics,
	})
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	a.db = client
	a.catalog = catalog.NewSerialized(catalog.NewGorm(client.DB))

	return nil
}

func (a *App) initMQ(ctx context.Context) error {
	if !a.cfg.MQ.Enabled {
		if a.cfg.Index.Queue.Enabled {
			return errors.New("index.queue requires mq.enabled")
		}

		return nil
	}

	opts := mq.Options{Logger: nlog.Logger()}
	if a.cfg.Metrics.Enabled {
		opts.Registerer = metrics.GetRegistry()
	}

	client, err := mq.New(ctx, a.cfg.MQ, opts)
	if err != nil {
		return fmt.Errorf("open mq: %w", err)
	}

	a.mq = client

	return nil
}

// initIndex 组装索引下游. 队列消费模式下本地索引由消费者写入，扫描只投递队列.
func (a *App) initIndex() error {
	var sinks []index.Sink

	if a.cfg.Index.Bleve.Enabled {
		b, err := index.OpenBleve(a.cfg.Index.Bleve.Path, a.logger.With().Str("component", "bleve").Logger())
		if err != nil {
			return err
		}

		a.bleve = b

		if !a.consumesQueue() {
			sinks = append(sinks, b)
		}
	}

	if a.cfg.Index.Queue.Enabled {
		sinks = append(sinks, index.NewQueue(a.mq.Publisher(), a.cfg.Index.Queue.Topic))
	}

	a.sink = index.Combine(sinks...)

	return nil
}

func (a *App) consumesQueue() bool {
	return a.cfg.Index.Queue.Enabled && a.cfg.Index.Queue.Consume && a.bleve != nil
}

func (a *App) initSource(ctx context.Context) error {
	if a.source != nil {
		return nil
	}

	rc := a.cfg.Remote

	var src remote.Source

	switch rc.Type {
	case configs.RemoteDrive:
		d, err := remote.NewDrive(ctx, rc.Drive, rc.PageSize)
		if err != nil {
			return err
		}

		src = d
	case configs.RemoteS3:
		cli, err := s3.New(ctx, rc.S3)
		if err != nil {
			return err
		}

		src = remote.NewMinIO(cli, int(rc.PageSize))
	default:
		return nil
	}

	a.source = remote.NewGuarded(src, remote.GuardOptions{
		Timeout:        rc.GetTimeoutDuration(),
		RateLimit:      rc.RateLimit,
		CircuitBreaker: rc.CircuitBreaker,
	})

	return nil
}

func (a *App) initState(ctx context.Context) error {
	if a.store == nil {
		store, err := kv.New(ctx, a.cfg.State)
		if err != nil {
			return fmt.Errorf("open state store: %w", err)
		}

		a.store = store
	}

	a.runs = kv.NewRuns(a.store, a.cfg.State.TTL)

	return nil
}

// Config 返回 App 使用的配置.
func (a *App) Config() configs.AppConfig {
	return a.cfg
}

// Catalog 返回目录.
func (a *App) Catalog() catalog.Catalog {
	return a.catalog
}

// Close 释放全部资源.
func (a *App) Close() error {
	var errs []error

	if a.bleve != nil {
		errs = append(errs, a.bleve.Close())
	}

	if a.mq != nil {
		errs = append(errs, a.mq.Close())
	}

	switch {
	case a.runs != nil:
		errs = append(errs, a.runs.Close())
	case a.store != nil:
		errs = append(errs, a.store.Close())
	}

	if a.db != nil {
		errs = append(errs, a.db.Close())
	}

	return errors.Join(errs...)
}
