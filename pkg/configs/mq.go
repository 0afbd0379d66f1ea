package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeChannel MQType = "gochannel"
	MQTypeNATS    MQType = "nats"
	MQTypeRedis   MQType = "redis"

	DefaultMQURL         = "localhost:4222"
	DefaultMaxReconnects = 5           // 默认最大重连次数.
	DefaultReconnectWait = 5           // 默认重连等待时间（秒）.
	DefaultMQClientID    = "arca-sync" // 默认客户端ID
	DefaultPingInterval  = 20          // 默认ping间隔 (秒)
	DefaultBufferSize    = 32768       // 默认缓冲区大小 (32KB)
	DefaultChannelBuffer = 256         // gochannel 每个订阅的缓冲大小
)

// MQConfig 消息队列配置.
type MQConfig struct {
	Enabled       bool   `mapstructure:"enabled"` // 启用后发布运行完成事件，并允许 index.queue
	Type          MQType `mapstructure:"type"           rule:"oneof=gochannel nats redis"`
	URL           string `mapstructure:"url"            rule:"hostname_port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	ClientID      string `mapstructure:"client_id"`
	MaxReconnects int    `mapstructure:"max_reconnects" rule:"min=0,max=100"`
	ReconnectWait int    `mapstructure:"reconnect_wait" rule:"min=1,max=300"`
	PingInterval  int    `mapstructure:"ping_interval"  rule:"min=1,max=300"`
	BufferSize    int    `mapstructure:"buffer_size"    rule:"min=1024,max=1048576"`
	ChannelBuffer int64  `mapstructure:"channel_buffer" rule:"min=0"`

	NATS  MQNATSConfig  `mapstructure:"nats"`
	Redis MQRedisConfig `mapstructure:"redis"`
}

// MQNATSConfig NATS MQ 配置.
type MQNATSConfig struct {
	JetStreamEnabled       bool     `mapstructure:"jetstream_enabled"`
	JetStreamAutoProvision bool     `mapstructure:"jetstream_auto_provision"`
	JetStreamTrackMsgID    bool     `mapstructure:"jetstream_track_msg_id"`
	JetStreamAckAsync      bool     `mapstructure:"jetstream_ack_async"`
	JetStreamDurablePrefix string   `mapstructure:"jetstream_durable_prefix"`
	JWT                    string   `mapstructure:"jwt"`
	NKey                   string   `mapstructure:"nkey"`
	ClusterURLs            []string `mapstructure:"cluster_urls"`
}

// MQRedisConfig Redis MQ 配置.
type MQRedisConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

// GetReconnectWait 返回重连等待时间.
func (c *MQConfig) GetReconnectWait() time.Duration {
	return time.Duration(c.ReconnectWait) * time.Second
}

// GetPingInterval 返回 ping 间隔.
func (c *MQConfig) GetPingInterval() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

// setDefaults 设置MQ配置的默认值.
func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.enabled", false)
	v.SetDefault("mq.type", MQTypeChannel)
	v.SetDefault("mq.url", DefaultMQURL)
	v.SetDefault("mq.user", "")
	v.SetDefault("mq.password", "")
	v.SetDefault("mq.client_id", DefaultMQClientID)
	v.SetDefault("mq.max_reconnects", DefaultMaxReconnects)
	v.SetDefault("mq.reconnect_wait", DefaultReconnectWait)
	v.SetDefault("mq.ping_interval", DefaultPingInterval)
	v.SetDefault("mq.buffer_size", DefaultBufferSize)
	v.SetDefault("mq.channel_buffer", DefaultChannelBuffer)

	// NATS 默认值
	v.SetDefault("mq.nats.jetstream_enabled", false)
	v.SetDefault("mq.nats.jetstream_auto_provision", true)
	v.SetDefault("mq.nats.jetstream_track_msg_id", true)
	v.SetDefault("mq.nats.jetstream_ack_async", false)
	v.SetDefault("mq.nats.jetstream_durable_prefix", "arca")
	v.SetDefault("mq.nats.jwt", "")
	v.SetDefault("mq.nats.nkey", "")
	v.SetDefault("mq.nats.cluster_urls", []string{})

	// Redis 默认值
	v.SetDefault("mq.redis.addr", "localhost:6379")
	v.SetDefault("mq.redis.password", "")
	v.SetDefault("mq.redis.db", 0)
}
