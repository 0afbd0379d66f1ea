// Package configs 管理应用程序配置，包括数据库、图书馆扫描、远端同步、索引与任务调度的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	import "path/to/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Library.Root)
//
// Example accessing DB config:
//
//	config := configs.GetConfig()
//	dsn := config.DB.GetDSN()
//	fmt.Println("DSN:", dsn)
//
// Example accessing Remote config:
//
//	config := configs.GetConfig()
//	remote := config.Remote
//	fmt.Println("Remote:", remote.Type, remote.Folder)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/arca/pkg/rule"
)

// AppVersion 应用版本号.
const AppVersion = "0.3.0"

// EnvPrefix 环境变量前缀，例如 ARCA_LIBRARY_ROOT.
const EnvPrefix = "ARCA"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server     ServerConfig     `mapstructure:"server"`     // ServerConfig 运维接口、调试模式等
		Log        LogConfig        `mapstructure:"log"`        // LogConfig 日志相关配置
		DB         DBConfig         `mapstructure:"db"`         // DBConfig 目录（catalog）数据库配置
		Library    LibraryConfig    `mapstructure:"library"`    // LibraryConfig 本地图书馆扫描配置
		Quarantine QuarantineConfig `mapstructure:"quarantine"` // QuarantineConfig 重复文件隔离配置
		Remote     RemoteConfig     `mapstructure:"remote"`     // RemoteConfig 远端文件夹同步配置
		Index      IndexConfig      `mapstructure:"index"`      // IndexConfig 索引下游配置
		MQ         MQConfig         `mapstructure:"mq"`         // MQConfig 消息队列配置
		State      StateConfig      `mapstructure:"state"`      // StateConfig 运行摘要存储配置
		Jobs       JobsConfig       `mapstructure:"jobs"`       // JobsConfig 定时任务配置
		Metrics    MetricsConfig    `mapstructure:"metrics"`    // MetricsConfig 监控配置
		Tracing    TracingConfig    `mapstructure:"tracing"`    // TracingConfig 追踪配置
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// 找不到配置文件时使用默认值与环境变量.
func InitConfig(path string) error {
	appViper = viper.New()
	// 设置默认值
	setAllDefaults(appViper)

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		appViper.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		appViper.SetConfigName("config")
		appViper.AddConfigPath(path)
		appViper.AddConfigPath(path + "/configs")

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				appViper.SetConfigFile(cfg)

				break
			}
		}
	}

	appViper.SetEnvPrefix(EnvPrefix)
	// ARCA_LIBRARY_ROOT 覆盖 library.root
	appViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	appViper.AutomaticEnv()

	// 读取配置
	if err := appViper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return loadConfig(appViper)
}

// loadConfig 解析并校验配置.
func loadConfig(v *viper.Viper) error {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	globalConfig = cfg

	reloadConfigs(v, globalConfig.Server.ReloadConfig)

	return nil
}

// Validate 校验字段规则以及跨配置段的约束.
func (c AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return err
	}

	// 远端只提供 MD5 摘要，本地指纹必须与之可比
	if c.Remote.Type != RemoteNone && c.Library.Hash != DefaultHashAlgorithm {
		return fmt.Errorf("library.hash=%s cannot be compared with remote.type=%s digests, use md5",
			c.Library.Hash, c.Remote.Type)
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var (
		serverConfig     ServerConfig
		logConfig        LogConfig
		dbConfig         DBConfig
		libraryConfig    LibraryConfig
		quarantineConfig QuarantineConfig
		remoteConfig     RemoteConfig
		indexConfig      IndexConfig
		mqConfig         MQConfig
		stateConfig      StateConfig
		jobsConfig       JobsConfig
		metricsConfig    MetricsConfig
		tracingConfig    TracingConfig
	)

	serverConfig.setDefaults(v)
	logConfig.setDefaults(v)
	dbConfig.setDefaults(v)
	libraryConfig.setDefaults(v)
	quarantineConfig.setDefaults(v)
	remoteConfig.setDefaults(v)
	indexConfig.setDefaults(v)
	mqConfig.setDefaults(v)
	stateConfig.setDefaults(v)
	jobsConfig.setDefaults(v)
	metricsConfig.setDefaults(v)
	tracingConfig.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}
	// 启用配置热重载，校验失败时保留旧配置
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
			return
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("Ignoring invalid config: %v\n", err)
			return
		}

		globalConfig = cfg
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

// GetViper 返回全局 Viper 实例.
func GetViper() *viper.Viper {
	return appViper
}

// Defaults 返回仅由默认值构成的配置，便于测试和命令行覆盖.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig
	_ = v.Unmarshal(&cfg)

	return cfg
}
