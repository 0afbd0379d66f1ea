package extract

import (
	"io"
	"os"
	"strings"
)

// extractPlain 读取文本文件前 MaxChars 个字节，丢弃非法 UTF-8 序列.
func extractPlain(path string, opts Options) (Preview, error) {
	f, err := os.Open(path)
	if err != nil {
		return Preview{}, err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, int64(opts.MaxChars)))
	if err != nil {
		return Preview{}, err
	}

	return Preview{Text: strings.ToValidUTF8(string(b), "")}, nil
}
