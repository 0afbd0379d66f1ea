package configs

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultLibraryRoot    = "." // 默认扫描根目录
	DefaultLibraryWorkers = 1   // 默认单线程顺序扫描
	DefaultHashAlgorithm  = "md5"

	DefaultPreviewMaxPages      = 5    // PDF/PPTX 读取页数
	DefaultPreviewMaxParagraphs = 50   // DOCX 读取段落数
	DefaultPreviewMaxChars      = 5000 // 预览最大字符数
	DefaultPreviewStoreChars    = 500  // 写入目录的描述字符数

	DefaultClassifySizeThreshold = 2 * 1024 * 1024 // 大于该尺寸视为书籍
)

// DefaultLibraryExtensions 默认纳入目录的扩展名.
var DefaultLibraryExtensions = []string{
	".pdf", ".docx", ".doc", ".epub", ".pptx", ".ppt", ".txt", ".md", ".jpg", ".jpeg", ".png",
}

type (
	// LibraryConfig 本地图书馆扫描配置.
	LibraryConfig struct {
		Root       string         `mapstructure:"root"       rule:"required"`
		Extensions []string       `mapstructure:"extensions" rule:"min=1,dive,ext"`
		Workers    int            `mapstructure:"workers"    rule:"min=1,max=64"`
		Hash       string         `mapstructure:"hash"       rule:"oneof=md5 sha256"`
		Preview    PreviewConfig  `mapstructure:"preview"`
		Classify   ClassifyConfig `mapstructure:"classify"`
	}

	// PreviewConfig 文本预览提取限制.
	PreviewConfig struct {
		MaxPages      int `mapstructure:"max_pages"      rule:"min=1"`
		MaxParagraphs int `mapstructure:"max_paragraphs" rule:"min=1"`
		MaxChars      int `mapstructure:"max_chars"      rule:"min=1"`
		StoreChars    int `mapstructure:"store_chars"    rule:"min=1"`
	}

	// ClassifyConfig 分类器配置.
	ClassifyConfig struct {
		SizeThreshold int64 `mapstructure:"size_threshold" rule:"min=0"`
	}
)

// ExtensionSet 返回小写扩展名集合.
func (c *LibraryConfig) ExtensionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Extensions))
	for _, ext := range c.Extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}

	return set
}

func (c *LibraryConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("library.root", DefaultLibraryRoot)
	v.SetDefault("library.extensions", DefaultLibraryExtensions)
	v.SetDefault("library.workers", DefaultLibraryWorkers)
	v.SetDefault("library.hash", DefaultHashAlgorithm)
	v.SetDefault("library.preview.max_pages", DefaultPreviewMaxPages)
	v.SetDefault("library.preview.max_paragraphs", DefaultPreviewMaxParagraphs)
	v.SetDefault("library.preview.max_chars", DefaultPreviewMaxChars)
	v.SetDefault("library.preview.store_chars", DefaultPreviewStoreChars)
	v.SetDefault("library.classify.size_threshold", DefaultClassifySizeThreshold)
}
