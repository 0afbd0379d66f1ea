package log_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/log"
)

// TestNewRunID 测试运行 ID 唯一且按生成顺序递增.
func TestNewRunID(t *testing.T) {
	a := log.NewRunID()
	b := log.NewRunID()

	require.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}

// TestLoggerInitOnce 测试多次获取返回同一个 logger.
func TestLoggerInitOnce(t *testing.T) {
	log.Init()

	assert.Same(t, log.Logger(), log.Logger())
}
