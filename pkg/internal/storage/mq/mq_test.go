package mq_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/storage/mq"
)

func channelConfig() configs.MQConfig {
	cfg := configs.Defaults().MQ
	cfg.Type = configs.MQTypeChannel

	return cfg
}

// TestRegisteredTypes 测试内置工厂已注册.
func TestRegisteredTypes(t *testing.T) {
	assert.Equal(t, []string{"gochannel", "nats", "redis"}, mq.RegisteredTypes())
}

// TestNewUnsupported 测试未知类型.
func TestNewUnsupported(t *testing.T) {
	cfg := channelConfig()
	cfg.Type = "kafka"

	_, err := mq.New(context.Background(), cfg, mq.Options{})
	assert.ErrorContains(t, err, "unsupported mq type")
}

// TestChannelRoundTrip 测试进程内发布订阅.
func TestChannelRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := mq.New(ctx, channelConfig(), mq.Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	defer c.Close()

	ch, err := c.Subscribe(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, "t", message.NewMessage(watermill.NewUUID(), []byte("hola"))))

	select {
	case m := <-ch:
		assert.Equal(t, "hola", string(m.Payload))
		m.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

// TestCloseTwice 测试重复关闭.
func TestCloseTwice(t *testing.T) {
	c, err := mq.New(context.Background(), channelConfig(), mq.Options{})
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

// TestPublishCancelled 测试取消的上下文不再发布.
func TestPublishCancelled(t *testing.T) {
	c, err := mq.New(context.Background(), channelConfig(), mq.Options{})
	require.NoError(t, err)

	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Publish(ctx, "t", message.NewMessage(watermill.NewUUID(), nil))
	assert.ErrorIs(t, err, context.Canceled)
}
