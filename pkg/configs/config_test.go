package configs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/rule"
)

// TestDefaultsAreValid 测试默认配置能通过校验.
func TestDefaultsAreValid(t *testing.T) {
	cfg := configs.Defaults()

	require.NoError(t, rule.ValidateStruct(cfg))
	assert.Equal(t, configs.SQLite, cfg.DB.Type)
	assert.Equal(t, 100, cfg.Remote.BatchSize)
	assert.Equal(t, 500, cfg.Library.Preview.StoreChars)
	assert.Equal(t, "0 3 * * *", cfg.Jobs.ScanCron)
	assert.Contains(t, cfg.Library.Extensions, ".pdf")
	assert.Equal(t, 60*time.Second, cfg.Remote.GetTimeoutDuration())
	assert.NotEqual(t, cfg.Server.Timeout, cfg.Remote.Timeout)
}

// TestInitConfigFromFile 测试从 YAML 文件加载并覆盖默认值.
func TestInitConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  reload_config: false
library:
  root: /srv/biblioteca
  workers: 4
remote:
  type: drive
  folder: abc123
  batch_size: 50
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	require.NoError(t, configs.InitConfig(dir))

	cfg := configs.GetConfig()
	assert.Equal(t, "/srv/biblioteca", cfg.Library.Root)
	assert.Equal(t, 4, cfg.Library.Workers)
	assert.Equal(t, configs.RemoteDrive, cfg.Remote.Type)
	assert.Equal(t, 50, cfg.Remote.BatchSize)
	// 未覆盖的键保持默认值
	assert.Equal(t, "md5", cfg.Library.Hash)
}

// TestInitConfigRejectsInvalid 测试非法配置被拒绝.
func TestInitConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  reload_config: false
library:
  extensions: ["pdf"]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	err := configs.InitConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

// TestInitConfigRejectsSHA256WithRemote 测试远端只有 MD5 摘要时不允许 sha256 指纹.
func TestInitConfigRejectsSHA256WithRemote(t *testing.T) {
	for _, typ := range []string{"drive", "s3"} {
		t.Run(typ, func(t *testing.T) {
			dir := t.TempDir()
			content := []byte(`
server:
  reload_config: false
library:
  hash: sha256
remote:
  type: ` + typ + `
`)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

			err := configs.InitConfig(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "library.hash=sha256")
		})
	}

	// 未配置远端时 sha256 可用
	cfg := configs.Defaults()
	cfg.Library.Hash = "sha256"
	require.NoError(t, cfg.Validate())
}

// TestInitConfigRemoteSettings 测试远端超时与 Drive 凭据键.
func TestInitConfigRemoteSettings(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  reload_config: false
  timeout: 10
remote:
  type: drive
  timeout: 120
  drive:
    api_key: clave-publica
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	require.NoError(t, configs.InitConfig(dir))

	cfg := configs.GetConfig()
	assert.Equal(t, 120*time.Second, cfg.Remote.GetTimeoutDuration())
	assert.Equal(t, 10*time.Second, cfg.Server.GetTimeoutDuration())
	assert.Equal(t, "clave-publica", cfg.Remote.Drive.APIKey)
	assert.Empty(t, cfg.Remote.Drive.CredentialsJSON)
}

// TestInitConfigMissingFile 测试缺少配置文件时使用默认值.
func TestInitConfigMissingFile(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))
	assert.Equal(t, configs.DefaultLibraryRoot, configs.GetConfig().Library.Root)
}

// TestSQLiteDSN 测试 SQLite DSN 的几种写法.
func TestSQLiteDSN(t *testing.T) {
	cases := map[string]string{
		"arca":                     "file:arca.db",
		"/var/lib/arca/catalog.db": "/var/lib/arca/catalog.db",
		configs.SQLiteMemory:       "file::memory:?cache=shared",
	}

	for name, want := range cases {
		c := configs.DBConfig{Type: configs.SQLite, Database: name}
		assert.Equal(t, want, c.GetDSN(), name)
	}
}

// TestQuarantineResolve 测试隔离目录与报告的路径解析.
func TestQuarantineResolve(t *testing.T) {
	q := configs.QuarantineConfig{Dir: "_dup", Report: "/tmp/report.txt"}

	assert.Equal(t, filepath.Join("/lib", "_dup"), q.ResolveDir("/lib"))
	assert.Equal(t, "/tmp/report.txt", q.ResolveReport("/lib"))
}
