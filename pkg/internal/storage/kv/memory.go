package kv

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yeisme/arca/pkg/configs"
)

// MemoryKV 基于 sync.Map 的内存 KV 实现，进程退出即丢失.
type MemoryKV struct {
	data sync.Map
	now  func() time.Time
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(context.Context, configs.StateConfig) (KVStore, error) {
	return &MemoryKV{now: time.Now}, nil
}

// load 读取并解包，过期项被惰性删除.
func (m *MemoryKV) load(key string) ([]byte, bool, error) {
	value, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}

	val, expired, _, err := decodeWithTTL(value.([]byte), m.now())
	if err != nil {
		return nil, false, err
	}

	if expired {
		m.data.Delete(key)
		return nil, false, nil
	}

	return val, true, nil
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	val, ok, err := m.load(key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), val...), nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, wrapped, err := encodeWithTTL(value, ttl, m.now())
	if err != nil {
		return err
	}

	if !wrapped {
		encoded = append([]byte(nil), value...)
	}

	m.data.Store(key, encoded)

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok, err := m.load(key)
	return ok, err
}

// Keys 获取以 prefix 开头的键.
func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)

	m.data.Range(func(key, _ any) bool {
		k, ok := key.(string)
		if !ok || !strings.HasPrefix(k, prefix) {
			return true
		}

		if _, live, err := m.load(k); err == nil && live {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

// Close 内存实现无需操作.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(configs.StateMemory, NewMemoryKV)
}
