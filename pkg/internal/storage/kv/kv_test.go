package kv_test

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/internal/storage/kv"
)

func memoryStore(t testing.TB) kv.KVStore {
	t.Helper()

	store, err := kv.New(context.Background(), configs.StateConfig{Type: configs.StateMemory})
	require.NoError(t, err)

	return store
}

// TestRegisteredTypes 测试内置后端已注册.
func TestRegisteredTypes(t *testing.T) {
	assert.Equal(t, []string{"memory", "nats", "redis"}, kv.GetRegisteredKVTypes())
}

// TestMemoryBasics 测试 Set/Get/Delete/Exists.
func TestMemoryBasics(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))

	v, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	ok, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a"))

	ok, _ = store.Exists(ctx, "a")
	assert.False(t, ok)
}

// TestMemoryTTL 测试过期键不可见.
func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)

	require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("y"), time.Hour))

	assert.Eventually(t, func() bool {
		ok, _ := store.Exists(ctx, "short")
		return !ok
	}, 3*time.Second, 100*time.Millisecond)

	v, err := store.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), v)
}

// TestMemoryKeysPrefix 测试前缀过滤.
func TestMemoryKeysPrefix(t *testing.T) {
	ctx := context.Background()
	store := memoryStore(t)

	for _, k := range []string{"runs.scan.last", "runs.dedup.last", "other"} {
		require.NoError(t, store.Set(ctx, k, []byte("v"), 0))
	}

	keys, err := store.Keys(ctx, "runs.")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"runs.scan.last", "runs.dedup.last"}, keys)
}

// TestRunsSaveAndList 测试运行记录的保存与列举.
func TestRunsSaveAndList(t *testing.T) {
	ctx := context.Background()
	runs := kv.NewRuns(memoryStore(t), time.Hour)

	started := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	require.NoError(t, runs.Save(ctx, model.RunRecord{
		Job: "scan", RunID: "r1", StartedAt: started,
		Scan: &model.ScanSummary{Candidates: 3, Inserted: 2, Skipped: 1},
	}))
	require.NoError(t, runs.Save(ctx, model.RunRecord{
		Job: "dedup", RunID: "r2", StartedAt: started,
		Dedup: &model.DedupSummary{Groups: 1, Moved: 2},
	}))
	// 覆盖
	require.NoError(t, runs.Save(ctx, model.RunRecord{
		Job: "scan", RunID: "r3", StartedAt: started,
		Scan: &model.ScanSummary{Candidates: 3, Skipped: 3},
	}))

	last, err := runs.Last(ctx, "scan")
	require.NoError(t, err)
	assert.Equal(t, "r3", last.RunID)
	assert.Equal(t, 3, last.Scan.Skipped)
	assert.True(t, started.Equal(last.StartedAt))

	all, err := runs.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "dedup", all[0].Job)
	assert.Equal(t, "scan", all[1].Job)

	_, err = runs.Last(ctx, "reconcile")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	assert.Error(t, runs.Save(ctx, model.RunRecord{}))
}

func BenchmarkMemoryKV(b *testing.B) {
	benchKV(b, "memory", memoryStore(b))
}

// Optional: enable with ENABLE_REDIS_BENCH=1 and REDIS_ADDR set (default 127.0.0.1:6379).
func BenchmarkRedisKV(b *testing.B) {
	if os.Getenv("ENABLE_REDIS_BENCH") == "" {
		b.Skip("set ENABLE_REDIS_BENCH=1 to enable")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	store, err := kv.New(context.Background(), configs.StateConfig{Type: configs.StateRedis, Addr: addr})
	if err != nil {
		b.Skipf("redis not available: %v", err)
	}

	benchKV(b, "redis", store)
}

// Optional: enable with ENABLE_NATS_BENCH=1 and NATS_URL set (default nats://127.0.0.1:4222).
func BenchmarkNATSKV(b *testing.B) {
	if os.Getenv("ENABLE_NATS_BENCH") == "" {
		b.Skip("set ENABLE_NATS_BENCH=1 to enable")
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}

	store, err := kv.New(context.Background(), configs.StateConfig{Type: configs.StateNATS, URL: url, Bucket: "bench-kv"})
	if err != nil {
		b.Skipf("nats not available: %v", err)
	}

	benchKV(b, "nats", store)
}

// benchKV 执行并行的 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, name string, store kv.KVStore) {
	defer store.Close()

	ctx := context.Background()
	payload := make([]byte, 1024)

	var ctr uint64

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			// 连字符保证键对 NATS KV 合法
			key := fmt.Sprintf("bench-%s-%d", name, atomic.AddUint64(&ctr, 1))
			if err := store.Set(ctx, key, payload, time.Minute); err != nil {
				b.Fatalf("set failed: %v", err)
			}

			if _, err := store.Get(ctx, key); err != nil {
				b.Fatalf("get failed: %v", err)
			}

			if err := store.Delete(ctx, key); err != nil {
				b.Fatalf("delete failed: %v", err)
			}
		}
	})
}
