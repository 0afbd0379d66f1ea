// Package extract 为各种文档格式生成有界的文本预览.
//
// 预览只读取文档开头的若干页、段落或字符，用于分类与语义索引，不做全文索引.
// 任何解析失败（损坏、加密、解析器 panic）都在单文件边界内消化：返回空字符串或
// 以 "[Error de Lectura: ...]" 开头的标记文本，绝不向上传播.
package extract

import (
	"fmt"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxPages      = 5
	DefaultMaxParagraphs = 50
	DefaultMaxChars      = 5000

	markerPrefix = "[Error de Lectura: "
)

// Options 预览提取限制.
type Options struct {
	MaxPages      int // PDF 页数与 PPTX 幻灯片数上限
	MaxParagraphs int // DOCX 段落数上限
	MaxChars      int // 输出字符（rune）上限
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}

	if o.MaxParagraphs <= 0 {
		o.MaxParagraphs = DefaultMaxParagraphs
	}

	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}

	return o
}

// Preview 提取结果.
type Preview struct {
	Text      string // 去除首尾空白后的预览文本，失败时为错误标记
	Pages     int    // 文档总页数/幻灯片数/章节数，未知为 0
	Encrypted bool   // PDF 是否加密
	Failed    bool   // Text 是否为错误标记
}

// Indexable 报告预览是否值得送往索引下游.
func (p Preview) Indexable() bool {
	return p.Text != "" && !p.Failed
}

// formatFunc 单一格式的提取策略.
type formatFunc func(path string, opts Options) (Preview, error)

// Extractor 按格式分派提取策略，可并发使用.
type Extractor struct {
	opts     Options
	handlers map[string]formatFunc
	logger   zerolog.Logger
}

// New 创建 Extractor.
func New(opts Options, logger zerolog.Logger) *Extractor {
	e := &Extractor{
		opts:   opts.withDefaults(),
		logger: logger,
	}

	e.handlers = map[string]formatFunc{
		"pdf":  extractPDF,
		"docx": extractDOCX,
		"pptx": extractPPTX,
		"epub": extractEPUB,
		"txt":  extractPlain,
		"md":   extractPlain,
	}

	return e
}

// Supports 报告格式是否有提取策略.
func (e *Extractor) Supports(format string) bool {
	_, ok := e.handlers[normalizeFormat(format)]
	return ok
}

// Extract 提取 path 的预览，format 为不带点的扩展名.
// 不支持的格式返回空预览；失败返回错误标记，从不返回错误.
func (e *Extractor) Extract(path, format string) (p Preview) {
	fn, ok := e.handlers[normalizeFormat(format)]
	if !ok {
		return Preview{}
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("path", path).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("extractor panic")

			p = failed(fmt.Errorf("%v", r))
		}
	}()

	out, err := fn(path, e.opts)
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("preview extraction failed")

		f := failed(err)
		f.Pages = out.Pages
		f.Encrypted = out.Encrypted

		return f
	}

	out.Text = Truncate(strings.TrimSpace(out.Text), e.opts.MaxChars)

	return out
}

// ErrorMarker 返回嵌入文本字段的错误标记.
func ErrorMarker(err error) string {
	return markerPrefix + err.Error() + "]"
}

// IsErrorMarker 报告文本是否为错误标记.
func IsErrorMarker(text string) bool {
	return strings.HasPrefix(text, markerPrefix)
}

// Truncate 截断为最多 n 个 rune，并去除尾部空白.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}

	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimRightFunc(s[:pos], isSpace)
		}
		i++
	}

	return s
}

func failed(err error) Preview {
	return Preview{Text: ErrorMarker(err), Failed: true}
}

func normalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(format), ".")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// textBuilder 带字符上限的文本收集器，达到上限后 Full 返回 true.
type textBuilder struct {
	sb    strings.Builder
	limit int
	runes int
}

func newTextBuilder(limit int) *textBuilder {
	return &textBuilder{limit: limit}
}

func (b *textBuilder) WriteString(s string) {
	if b.Full() {
		return
	}

	b.sb.WriteString(s)
	b.runes += utf8.RuneCountInString(s)
}

func (b *textBuilder) Full() bool { return b.runes >= b.limit }

func (b *textBuilder) String() string { return b.sb.String() }
