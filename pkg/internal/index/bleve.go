package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/internal/errs"
)

// document 是写入 bleve 的文档结构.
type document struct {
	Text     string   `json:"text"`
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Format   string   `json:"format"`
	Origin   string   `json:"origin"`
}

// Hit 一条检索结果.
type Hit struct {
	RecordID string  `json:"record_id"`
	Score    float64 `json:"score"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
}

// Bleve 本地全文索引，文本按西班牙语分析.
type Bleve struct {
	idx  bleve.Index
	path string
}

// newMapping 文本字段使用西班牙语分析器，分类与标签按关键字精确匹配.
func newMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = es.AnalyzerName

	stored := bleve.NewTextFieldMapping()
	stored.Analyzer = es.AnalyzerName
	stored.Store = true

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("title", stored)
	doc.AddFieldMappingsAt("author", stored)
	doc.AddFieldMappingsAt("category", kw)
	doc.AddFieldMappingsAt("tags", kw)
	doc.AddFieldMappingsAt("format", kw)
	doc.AddFieldMappingsAt("origin", kw)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = es.AnalyzerName

	return im
}

// OpenBleve 打开 path 处的索引，不存在时创建.
func OpenBleve(path string, logger zerolog.Logger) (*Bleve, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		logger.Info().Str("path", path).Msg("creating full text index")

		idx, err = bleve.New(path, newMapping())
	}

	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}

	return &Bleve{idx: idx, path: path}, nil
}

// NewMemBleve 创建仅驻留内存的索引.
func NewMemBleve() (*Bleve, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, err
	}

	return &Bleve{idx: idx}, nil
}

// Index 实现 Sink，同一记录 ID 再次写入会覆盖.
func (b *Bleve) Index(ctx context.Context, recordID, text string, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.idx.Index(recordID, document{
		Text:     text,
		Title:    meta.Title,
		Author:   meta.Author,
		Category: meta.Category,
		Tags:     meta.Tags,
		Format:   meta.Format,
		Origin:   meta.Origin,
	})
	if err != nil {
		return errs.E(errs.KindIndexSink, "bleve index", recordID, err)
	}

	return nil
}

// Delete 从索引中移除记录.
func (b *Bleve) Delete(recordID string) error {
	return b.idx.Delete(recordID)
}

// Search 使用 query string 语法检索，例如 `+category:Seminario gracia`.
func (b *Bleve) Search(ctx context.Context, q string, size int) ([]Hit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("empty query")
	}

	if size <= 0 {
		size = 10
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), size, 0, false)
	req.Fields = []string{"title", "category"}

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{RecordID: h.ID, Score: h.Score}
		hit.Title, _ = h.Fields["title"].(string)
		hit.Category, _ = h.Fields["category"].(string)
		hits = append(hits, hit)
	}

	return hits, nil
}

// Count 返回已索引的文档数.
func (b *Bleve) Count() (uint64, error) {
	return b.idx.DocCount()
}

// Close 关闭索引.
func (b *Bleve) Close() error {
	return b.idx.Close()
}
