package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// RemoteType 远端来源类型.
type RemoteType string

const (
	RemoteNone  RemoteType = "none"
	RemoteDrive RemoteType = "drive"
	RemoteS3    RemoteType = "s3"
)

const (
	DefaultRemoteBatchSize = 100  // 每批提交的记录数
	DefaultRemotePageSize  = 1000 // 每页列举的条目数
	DefaultRemoteTimeout   = 60   // 单次远端调用超时，单位秒

	// 默认熔断器配置.
	DefaultCBEnabled           = true
	DefaultCBFailureRate       = 0.5
	DefaultCBMinRequests       = 5
	DefaultCBIntervalSeconds   = 60
	DefaultCBTimeoutSeconds    = 30
	DefaultCBMaxRequestsInHalf = 1

	// 默认速率限制配置.
	DefaultRateLimitEnabled = true
	DefaultRateLimitRPS     = 10.0
	DefaultRateLimitBurst   = 20

	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultS3BucketName      = "arca"           // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
)

type (
	// RemoteConfig 远端文件夹同步配置.
	RemoteConfig struct {
		Type           RemoteType           `mapstructure:"type"            rule:"oneof=none drive s3"`
		Folder         string               `mapstructure:"folder"`
		BatchSize      int                  `mapstructure:"batch_size"      rule:"min=1,max=10000"`
		PageSize       int64                `mapstructure:"page_size"       rule:"min=1,max=1000"`
		Timeout        int                  `mapstructure:"timeout"         rule:"min=1,max=3600"`
		Drive          DriveConfig          `mapstructure:"drive"`
		S3             S3Config             `mapstructure:"s3"`
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	}

	// DriveConfig Google Drive 凭据配置.
	// 按 CredentialsJSON、CredentialsFile（服务账号或 OAuth 客户端）、APIKey 的顺序选用.
	DriveConfig struct {
		CredentialsJSON string `mapstructure:"credentials_json"` // 服务账号 JSON 内容
		CredentialsFile string `mapstructure:"credentials_file"` // 服务账号或 OAuth 客户端凭据
		TokenFile       string `mapstructure:"token_file"`       // 已授权的 OAuth token
		APIKey          string `mapstructure:"api_key"`          // 仅可读取公开文件夹
	}

	// S3Config MinIO S3存储配置.
	S3Config struct {
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		UseSSL          bool   `mapstructure:"use_ssl"`
		BucketName      string `mapstructure:"bucket_name"`
		Region          string `mapstructure:"region"`
	}

	// CircuitBreakerConfig 熔断器配置.
	CircuitBreakerConfig struct {
		Enabled           bool    `mapstructure:"enabled"`
		FailureRate       float64 `mapstructure:"failure_rate"         rule:"min=0,max=1"` // 连续窗口失败比例阈值 [0,1]
		MinRequests       uint32  `mapstructure:"min_requests"`                            // 进入统计的最小请求数
		IntervalSeconds   int     `mapstructure:"interval_seconds"     rule:"min=0"`       // 滑动窗口统计周期
		TimeoutSeconds    int     `mapstructure:"timeout_seconds"      rule:"min=0"`       // 打开状态持续时间（自动半开）
		MaxRequestsInHalf uint32  `mapstructure:"max_requests_in_half"`                    // 半开状态允许的并发请求数
	}

	// RateLimitConfig 远端调用速率限制配置.
	RateLimitConfig struct {
		Enabled bool    `mapstructure:"enabled"`
		RPS     float64 `mapstructure:"rps"   rule:"min=0"` // 每秒允许的请求数
		Burst   int     `mapstructure:"burst" rule:"min=0"` // 突发容量
	}
)

// GetTimeoutDuration 返回单次远端调用的超时.
func (c *RemoteConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

func (c *RemoteConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("remote.type", RemoteNone)
	v.SetDefault("remote.folder", "")
	v.SetDefault("remote.batch_size", DefaultRemoteBatchSize)
	v.SetDefault("remote.page_size", DefaultRemotePageSize)
	v.SetDefault("remote.timeout", DefaultRemoteTimeout)

	v.SetDefault("remote.drive.credentials_json", "")
	v.SetDefault("remote.drive.credentials_file", "credentials.json")
	v.SetDefault("remote.drive.token_file", "token.json")
	v.SetDefault("remote.drive.api_key", "")

	v.SetDefault("remote.s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("remote.s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("remote.s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("remote.s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("remote.s3.bucket_name", DefaultS3BucketName)
	v.SetDefault("remote.s3.region", DefaultS3Region)

	v.SetDefault("remote.circuit_breaker.enabled", DefaultCBEnabled)
	v.SetDefault("remote.circuit_breaker.failure_rate", DefaultCBFailureRate)
	v.SetDefault("remote.circuit_breaker.min_requests", DefaultCBMinRequests)
	v.SetDefault("remote.circuit_breaker.interval_seconds", DefaultCBIntervalSeconds)
	v.SetDefault("remote.circuit_breaker.timeout_seconds", DefaultCBTimeoutSeconds)
	v.SetDefault("remote.circuit_breaker.max_requests_in_half", DefaultCBMaxRequestsInHalf)

	v.SetDefault("remote.rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("remote.rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("remote.rate_limit.burst", DefaultRateLimitBurst)
}
