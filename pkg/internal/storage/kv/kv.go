// Package kv 提供用于键值存储的接口和实现，保存批处理任务的运行摘要.
package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/yeisme/arca/pkg/configs"
)

// ErrNotFound 键不存在或已过期.
var ErrNotFound = errors.New("kv: key not found")

// KVStore 定义键值存储接口.
type KVStore interface {
	// Get 获取键的值.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 设置键的值，ttl<=0 表示不过期.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除键.
	Delete(ctx context.Context, key string) error
	// Exists 检查键是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// Keys 返回以 prefix 开头的键，空 prefix 返回全部.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close 关闭存储连接.
	Close() error
}

// KVFactory 定义创建 KVStore 的工厂函数类型.
type KVFactory func(ctx context.Context, cfg configs.StateConfig) (KVStore, error)

var (
	kvMu        sync.RWMutex
	kvFactories = make(map[configs.StateType]KVFactory)
)

// RegisterKVFactory 注册 KV 工厂函数.
func RegisterKVFactory(t configs.StateType, factory KVFactory) {
	kvMu.Lock()
	defer kvMu.Unlock()

	kvFactories[t] = factory
}

// GetRegisteredKVTypes 返回已注册的 KV 类型列表.
func GetRegisteredKVTypes() []string {
	kvMu.RLock()
	defer kvMu.RUnlock()

	types := make([]string, 0, len(kvFactories))
	for t := range kvFactories {
		types = append(types, string(t))
	}

	slices.Sort(types)

	return types
}

// New 根据配置创建 KVStore 实例.
func New(ctx context.Context, cfg configs.StateConfig) (KVStore, error) {
	kvMu.RLock()
	factory, ok := kvFactories[cfg.Type]
	kvMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported KV type: %s", cfg.Type)
	}

	return factory(ctx, cfg)
}
