package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultBlevePath  = ".arca/index.bleve"
	DefaultIndexTopic = "arca.index.requested"
)

type (
	// IndexConfig 索引下游配置，可同时启用本地全文索引与消息队列.
	IndexConfig struct {
		Bleve BleveConfig      `mapstructure:"bleve"`
		Queue IndexQueueConfig `mapstructure:"queue"`
	}

	// BleveConfig 本地全文索引配置.
	BleveConfig struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	}

	// IndexQueueConfig 通过 MQ 投递索引请求的配置.
	// Consume 为 true 时扫描只投递到队列，由 serve 订阅队列写入本地全文索引.
	IndexQueueConfig struct {
		Enabled bool   `mapstructure:"enabled"`
		Topic   string `mapstructure:"topic"`
		Consume bool   `mapstructure:"consume"`
	}
)

func (c *IndexConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("index.bleve.enabled", true)
	v.SetDefault("index.bleve.path", DefaultBlevePath)
	v.SetDefault("index.queue.enabled", false)
	v.SetDefault("index.queue.topic", DefaultIndexTopic)
	v.SetDefault("index.queue.consume", false)
}
