package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/arca/pkg/configs"
)

// ErrClosed 在已关闭的 Subscriber 上订阅时返回.
var ErrClosed = errors.New("mq: subscriber closed")

// RedisPublisher Redis Pub/Sub 发布端.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Pub/Sub 订阅端.
// Redis Pub/Sub 不持久化，订阅建立之前发布的消息会丢失.
type RedisSubscriber struct {
	client  *redis.Client
	logger  watermill.LoggerAdapter
	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisFactory 创建 Redis Publisher & Subscriber，两端共享一个连接池.
func redisFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}

	pub := &RedisPublisher{client: rdb}
	sub := &RedisSubscriber{
		client:  rdb,
		logger:  logger,
		closeCh: make(chan struct{}),
	}

	return pub, sub, nil
}

// Publish 实现 message.Publisher，消息 UUID 与 metadata 不随 Redis 传输.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if err := p.client.Publish(msg.Context(), topic, []byte(msg.Payload)).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close 连接由 Subscriber 负责关闭.
func (p *RedisPublisher) Close() error {
	return nil
}

// Subscribe 实现 message.Subscriber.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	ps := s.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s.subs = append(s.subs, ps)
	out := make(chan *message.Message)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case rm, ok := <-in:
				if !ok {
					return
				}

				if !s.deliver(ctx, out, message.NewMessage(watermill.NewUUID(), []byte(rm.Payload))) {
					return
				}
			}
		}
	}()

	return out, nil
}

// deliver 投递消息并等待 ack，nack 时重新投递.
func (s *RedisSubscriber) deliver(ctx context.Context, out chan<- *message.Message, msg *message.Message) bool {
	for {
		m := msg.Copy()

		select {
		case out <- m:
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}

		select {
		case <-m.Acked():
			return true
		case <-m.Nacked():
			s.logger.Debug("message nacked, redelivering", watermill.LogFields{"uuid": m.UUID})
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Close 实现 message.Subscriber.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	close(s.closeCh)

	var errs []error

	for _, ps := range s.subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if err := s.client.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
