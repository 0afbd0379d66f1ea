// Package classify 根据文件名、预览文本与尺寸为文件确定分类与标签.
package classify

import (
	"strings"

	"github.com/yeisme/arca/pkg/internal/model"
)

const (
	CategoryGeneral = "General"
	CategoryBook    = "Libro/Artículo"
	CategoryBrief   = "Boletín/Breve"
	CategorySunday  = "Escuela Dominical"
	CategorySem     = "Seminario"
	CategoryMedia   = "Multimedia"
	CategoryMusic   = "Música"

	// DefaultSizeThreshold 未命中关键词时，大于该尺寸归为书籍.
	DefaultSizeThreshold = 2 * 1024 * 1024
)

// Rule 分类表中的一行.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultTable 默认分类表，顺序即优先级.
var DefaultTable = []Rule{
	{CategorySunday, []string{"manualidad", "colorear", "niños", "infantil", "dinámica", "recortar", "títeres", "clase bíblica"}},
	{CategorySem, []string{"teología", "doctrina", "exégesis", "hermenéutica", "sistemática", "historia", "griego", "hebreo", "comentario"}},
	{CategoryMedia, []string{"afiche", "banner", "logo", "presentación", "diapositiva"}},
	{CategoryMusic, []string{"himnario", "partitura", "acordes", "coros"}},
}

// Override 文件名包含 Pattern 时强制归类为 Category.
type Override struct {
	Pattern  string
	Category string
}

// DefaultOverrides 默认文件名覆盖规则.
var DefaultOverrides = []Override{
	{Pattern: "ppt", Category: CategoryMedia},
}

// Result 分类结果.
type Result struct {
	Category string
	Tags     []string // 已去重排序
}

// Classifier 纯函数式分类器，可并发使用.
type Classifier struct {
	table     []Rule
	overrides []Override
	threshold int64
}

// Option 分类器选项.
type Option func(*Classifier)

// WithTable 替换分类表.
func WithTable(table []Rule) Option {
	return func(c *Classifier) { c.table = table }
}

// WithOverrides 替换文件名覆盖规则.
func WithOverrides(o []Override) Option {
	return func(c *Classifier) { c.overrides = o }
}

// WithSizeThreshold 设置尺寸阈值.
func WithSizeThreshold(n int64) Option {
	return func(c *Classifier) { c.threshold = n }
}

// New 创建分类器.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		table:     DefaultTable,
		overrides: DefaultOverrides,
		threshold: DefaultSizeThreshold,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify 返回分类与标签.
//
// 表中第一个命中任一关键词的分类胜出，之后的分类不会覆盖它；所有分类中命中的关键词
// 都加入标签. 文件名覆盖规则在关键词匹配之后生效. 未命中时按尺寸回退.
func (c *Classifier) Classify(filename, text string, size int64) Result {
	content := strings.ToLower(filename + " " + text)

	category := ""

	var tags []string

	for _, rule := range c.table {
		for _, kw := range rule.Keywords {
			if !strings.Contains(content, kw) {
				continue
			}

			tags = append(tags, kw)

			if category == "" {
				category = rule.Category
			}
		}
	}

	lowerName := strings.ToLower(filename)
	for _, o := range c.overrides {
		if strings.Contains(lowerName, o.Pattern) {
			category = o.Category
			break
		}
	}

	if category == "" {
		if size > c.threshold {
			category = CategoryBook
		} else {
			category = CategoryBrief
		}
	}

	if category == "" {
		category = CategoryGeneral
	}

	return Result{Category: category, Tags: model.NormalizeTags(tags)}
}
