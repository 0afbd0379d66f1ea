// Package s3 处理 S3 兼容对象存储的连接.
package s3

import (
	"context"
	"fmt"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/arca/pkg/configs"
	nlog "github.com/yeisme/arca/pkg/log"
)

// Client 包装 MinIO 客户端及其存储桶.
type Client struct {
	*minio.Client

	Bucket string
}

// New 初始化 MinIO 客户端并确认存储桶存在.
// 同步只读取远端，因此存储桶不存在时返回错误而不是自动创建.
func New(ctx context.Context, cfg configs.S3Config) (*Client, error) {
	endpoint := cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("arca", configs.AppVersion)

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}

	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.BucketName)
	}

	nlog.Logger().Debug().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("s3 connected")

	return &Client{Client: cli, Bucket: cfg.BucketName}, nil
}

// HealthCheck 简单的健康检查，通过查询存储桶来验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.BucketExists(ctx, c.Bucket)
	return err
}
