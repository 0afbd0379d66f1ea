package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/app"
	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/catalog"
	"github.com/yeisme/arca/pkg/internal/jobs"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/internal/remote"
	"github.com/yeisme/arca/pkg/internal/remote/mocks"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()

	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// testConfig 返回指向临时目录的配置，目录与运行状态都在内存中.
func testConfig(t *testing.T) configs.AppConfig {
	t.Helper()

	cfg := configs.Defaults()
	cfg.Library.Root = t.TempDir()
	cfg.Server.LockDir = filepath.Join(t.TempDir(), "locks")
	cfg.Index.Bleve.Path = filepath.Join(t.TempDir(), "index.bleve")
	cfg.Remote.Type = configs.RemoteNone

	return cfg
}

func newApp(t *testing.T, cfg configs.AppConfig, opts ...app.Option) (*app.App, *catalog.Memory) {
	t.Helper()

	cat := catalog.NewMemory()

	a, err := app.New(context.Background(), cfg, append([]app.Option{app.WithCatalog(cat)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return a, cat
}

// TestScanSearchExport 扫描写入目录与全文索引，运行记录与导出可见.
func TestScanSearchExport(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	write(t, cfg.Library.Root, "teologia/sistematica.txt", "Historia de la teología sistemática")
	write(t, cfg.Library.Root, "notas.md", "Apuntes del seminario")

	a, cat := newApp(t, cfg)

	run, err := a.Scan(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, run.Scan)
	assert.Equal(t, 2, run.Scan.Inserted)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, 2, cat.Len())

	hits, err := a.Search(ctx, "teología", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "sistematica", hits[0].Title)

	runs, err := a.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, jobs.JobScan, runs[0].Job)
	assert.Equal(t, run.RunID, runs[0].RunID)

	var buf bytes.Buffer

	n, err := a.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var inv app.Inventory
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &inv))
	assert.Equal(t, 2, inv.Count)
	assert.Len(t, inv.Records, 2)
}

// TestScanDryRun 演练模式报告结果但不修改目录.
func TestScanDryRun(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg.Library.Root, "a.txt", "uno")

	a, cat := newApp(t, cfg)

	run, err := a.Scan(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Equal(t, 1, run.Scan.Inserted)
	assert.Equal(t, 0, cat.Len())
}

// TestRunBusy 同一任务的锁被占用时不运行.
func TestRunBusy(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Server.LockDir, 0o755))

	held := flock.New(filepath.Join(cfg.Server.LockDir, jobs.JobScan+".lock"))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	t.Cleanup(func() { _ = held.Unlock() })

	a, _ := newApp(t, cfg)

	assert.True(t, a.Busy(jobs.JobScan))
	assert.False(t, a.Busy(jobs.JobDedup))

	_, err = a.Scan(context.Background(), false)
	require.ErrorIs(t, err, app.ErrBusy)

	// 其他任务不受影响
	_, err = a.Dedup(context.Background(), false)
	require.NoError(t, err)
}

// TestReconcile 未配置远端时报错；配置后插入远端记录.
func TestReconcile(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Remote.Folder = "shared"

	a, _ := newApp(t, cfg)

	run, err := a.Reconcile(ctx, false)
	require.ErrorIs(t, err, app.ErrNoRemote)
	assert.Equal(t, app.ErrNoRemote.Error(), run.Error)

	src := new(mocks.MockSource)
	src.On("ListPage", mock.Anything, "shared", "").Return(remote.Page{Items: []remote.Item{
		{ID: "r1", Name: "Homilías.pdf", Size: 100, Digest: "d1"},
	}}, nil)

	// 两个 App 不能共用同一个索引目录
	cfg.Index.Bleve.Enabled = false

	b, cat := newApp(t, cfg, app.WithSource(src))

	run, err = b.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, model.ReconcileSummary{Listed: 1, Inserted: 1}, *run.Reconcile)

	rec, err := cat.FindByRemoteID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.OriginRemote, rec.Origin)
}

// TestDedup 重复文件移入隔离目录并写报告.
func TestDedup(t *testing.T) {
	cfg := testConfig(t)
	write(t, cfg.Library.Root, "libro.pdf", "same bytes")
	write(t, cfg.Library.Root, "libro (copia).pdf", "same bytes")

	a, _ := newApp(t, cfg)

	run, err := a.Dedup(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Dedup.Groups)
	assert.Equal(t, 1, run.Dedup.Moved)
	assert.FileExists(t, cfg.Quarantine.ResolveReport(cfg.Library.Root))
	assert.FileExists(t, filepath.Join(cfg.Library.Root, "libro.pdf"))
	assert.NoFileExists(t, filepath.Join(cfg.Library.Root, "libro (copia).pdf"))
}

// TestIndexQueueRequiresMQ 启用索引队列但未启用 MQ 时创建失败.
func TestIndexQueueRequiresMQ(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Queue.Enabled = true

	_, err := app.New(context.Background(), cfg, app.WithCatalog(catalog.NewMemory()))
	require.Error(t, err)
}

// TestIndexQueueConsumer 扫描投递到队列，消费者写入本地索引.
func TestIndexQueueConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t)
	cfg.MQ.Enabled = true
	cfg.MQ.Type = configs.MQTypeChannel
	cfg.Index.Queue.Enabled = true
	cfg.Index.Queue.Consume = true
	write(t, cfg.Library.Root, "misal.txt", "Misal romano para los domingos")

	a, _ := newApp(t, cfg)

	done, err := a.StartIndexConsumer(ctx)
	require.NoError(t, err)

	_, err = a.Scan(ctx, false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		hits, err := a.Search(ctx, "domingos", 5)
		return err == nil && len(hits) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

// TestSearchWithoutIndex 未启用全文索引时检索报错.
func TestSearchWithoutIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Bleve.Enabled = false

	a, _ := newApp(t, cfg)

	_, err := a.Search(context.Background(), "x", 1)
	require.ErrorIs(t, err, app.ErrNoIndex)

	_, err = a.StartIndexConsumer(context.Background())
	require.Error(t, err)
}
