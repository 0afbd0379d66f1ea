package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/internal/storage/db"
)

// TestRegisteredTypes 测试各驱动已注册.
func TestRegisteredTypes(t *testing.T) {
	types := db.GetRegisteredDBTypes()

	assert.Contains(t, types, configs.SQLite)
	assert.Contains(t, types, configs.PostgreSQL)
	assert.Contains(t, types, configs.MySQL)
}

// TestNewSQLite 测试打开 SQLite 并完成迁移.
func TestNewSQLite(t *testing.T) {
	cfg := configs.DBConfig{
		Type:         configs.SQLite,
		Database:     filepath.Join(t.TempDir(), "catalog.db"),
		MaxIdleConns: 1,
	}

	client, err := db.New(context.Background(), cfg, db.Options{Quiet: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.True(t, client.Migrator().HasTable(&model.FileRecord{}))
}

// TestNewUnsupported 测试不支持的数据库类型.
func TestNewUnsupported(t *testing.T) {
	_, err := db.New(context.Background(), configs.DBConfig{Type: "duckdb", Database: "x"}, db.Options{})
	assert.Error(t, err)
}
