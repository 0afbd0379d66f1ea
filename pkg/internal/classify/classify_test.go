package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yeisme/arca/pkg/internal/classify"
)

// TestFirstMatchWins 测试先命中的分类胜出，且所有命中关键词都成为标签.
func TestFirstMatchWins(t *testing.T) {
	c := classify.New()

	got := c.Classify("material.pdf", "Doctrina para la clase: manualidad con títeres", 10)

	assert.Equal(t, classify.CategorySunday, got.Category)
	assert.Equal(t, []string{"doctrina", "manualidad", "títeres"}, got.Tags)
}

// TestFirstMatchIsTableOrderNotTextOrder 测试优先级由表顺序决定而非文本出现顺序.
func TestFirstMatchIsTableOrderNotTextOrder(t *testing.T) {
	c := classify.New()

	got := c.Classify("himnario.pdf", "teología", 10)

	assert.Equal(t, classify.CategorySem, got.Category)
	assert.ElementsMatch(t, []string{"himnario", "teología"}, got.Tags)
}

// TestFilenameOverride 测试文件名覆盖规则在关键词匹配之后生效.
func TestFilenameOverride(t *testing.T) {
	c := classify.New()

	got := c.Classify("Clase Niños.PPTX", "", 10)

	assert.Equal(t, classify.CategoryMedia, got.Category)
	assert.Equal(t, []string{"niños"}, got.Tags)
}

// TestSizeFallback 测试未命中关键词时按尺寸回退.
func TestSizeFallback(t *testing.T) {
	c := classify.New()

	assert.Equal(t, classify.CategoryBook, c.Classify("x.pdf", "", classify.DefaultSizeThreshold+1).Category)
	assert.Equal(t, classify.CategoryBrief, c.Classify("x.pdf", "", classify.DefaultSizeThreshold).Category)
	assert.Empty(t, c.Classify("x.pdf", "", 0).Tags)
}

// TestCaseInsensitive 测试大小写不敏感匹配.
func TestCaseInsensitive(t *testing.T) {
	got := classify.New().Classify("COMENTARIO de Romanos.pdf", "", 0)

	assert.Equal(t, classify.CategorySem, got.Category)
	assert.Equal(t, []string{"comentario"}, got.Tags)
}

// TestCustomTable 测试注入分类表与阈值.
func TestCustomTable(t *testing.T) {
	c := classify.New(
		classify.WithTable([]classify.Rule{{Category: "Jóvenes", Keywords: []string{"campamento"}}}),
		classify.WithOverrides(nil),
		classify.WithSizeThreshold(0),
	)

	assert.Equal(t, "Jóvenes", c.Classify("campamento.ppt", "", 0).Category)
	assert.Equal(t, classify.CategoryBook, c.Classify("otro.pdf", "", 1).Category)
}
