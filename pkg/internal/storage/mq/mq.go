// Package mq 提供基于 Watermill 库的统一消息队列操作接口.
// 支持发布/订阅模式，并通过工厂模式抽象不同的 MQ 实现.
//
// 支持的 MQ 类型：
//   - gochannel（进程内，默认）
//   - NATS（支持 JetStream）
//   - Redis Pub/Sub
//
// 使用示例：
//
//	client, err := mq.New(ctx, configs.GetConfig().MQ, mq.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	msg := message.NewMessage(watermill.NewUUID(), []byte("hello world"))
//	err = client.Publish(ctx, "topic", msg)
package mq

import (
	"context"
	"fmt"
	"slices"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/configs"
	nlog "github.com/yeisme/arca/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[configs.MQType]Factory{}
)

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[t] = f
}

// RegisteredTypes 返回已注册的 MQ 类型.
func RegisteredTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, string(t))
	}

	slices.Sort(types)

	return types
}

// Options 客户端可选项.
type Options struct {
	// Registerer 非空时为 publisher/subscriber 挂上 Prometheus 指标.
	Registerer prometheus.Registerer
	// Logger 为空时使用全局日志.
	Logger *zerolog.Logger
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	kind       configs.MQType

	closeOnce sync.Once
	closeErr  error
}

// New 按配置创建消息队列客户端.
func New(ctx context.Context, cfg configs.MQConfig, opts Options) (*Client, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Type]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	zl := opts.Logger
	if zl == nil {
		zl = nlog.Logger()
	}

	logger := NewLoggerAdapter(zl)

	pub, sub, err := factory(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	if opts.Registerer != nil {
		builder := metrics.NewPrometheusMetricsBuilder(opts.Registerer, "arca", "mq")

		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	zl.Info().Str("type", string(cfg.Type)).Msg("mq client initialized")

	return &Client{publisher: pub, subscriber: sub, kind: cfg.Type}, nil
}

// Type 返回底层 MQ 类型.
func (c *Client) Type() configs.MQType { return c.kind }

// Publisher 返回底层 publisher.
func (c *Client) Publisher() message.Publisher { return c.publisher }

// Publish 便捷发布.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.SetContext(ctx)

		if err := c.publisher.Publish(topic, m); err != nil {
			return err
		}
	}

	return nil
}

// Subscribe 便捷订阅.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Close 关闭资源，可重复调用.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.publisher != nil {
			if e := c.publisher.Close(); e != nil {
				c.closeErr = e
			}
		}

		// gochannel 的 publisher 与 subscriber 是同一个对象，其 Close 可重入
		if c.subscriber != nil {
			if e := c.subscriber.Close(); e != nil {
				c.closeErr = e
			}
		}
	})

	return c.closeErr
}
