package configs

import (
	"time"

	"github.com/spf13/viper"
)

// StateType 运行状态存储类型.
type StateType string

const (
	StateMemory StateType = "memory"
	StateRedis  StateType = "redis"
	StateNATS   StateType = "nats"

	DefaultStateTTL    = 7 * 24 * time.Hour // 运行摘要保留时长
	DefaultStateBucket = "arca-runs"
)

// StateConfig 批处理运行摘要的键值存储配置.
type StateConfig struct {
	Type     StateType     `mapstructure:"type"     rule:"oneof=memory redis nats"`
	TTL      time.Duration `mapstructure:"ttl"`
	Bucket   string        `mapstructure:"bucket"   rule:"required"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"       rule:"min=0,max=15"`
	URL      string        `mapstructure:"url"`
}

func (c *StateConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("state.type", StateMemory)
	v.SetDefault("state.ttl", DefaultStateTTL)
	v.SetDefault("state.bucket", DefaultStateBucket)
	v.SetDefault("state.addr", "localhost:6379")
	v.SetDefault("state.password", "")
	v.SetDefault("state.db", 0)
	v.SetDefault("state.url", "nats://localhost:4222")
}
