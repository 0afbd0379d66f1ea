package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF 读取前 MaxPages 页的纯文本.
// 无法用空口令解密或加密方式不受支持的 PDF 返回 Encrypted=true 与空文本，不视为失败.
func extractPDF(path string, opts Options) (Preview, error) {
	f, err := os.Open(path)
	if err != nil {
		return Preview{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Preview{}, err
	}

	if info.Size() == 0 {
		return Preview{}, errors.New("empty pdf")
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || trailerEncrypted(f, info.Size()) {
			return Preview{Encrypted: true}, nil
		}

		return Preview{}, fmt.Errorf("open pdf: %w", err)
	}

	out := Preview{
		Pages:     r.NumPage(),
		Encrypted: !r.Trailer().Key("Encrypt").IsNull(),
	}

	tb := newTextBuilder(opts.MaxChars)

	for i := 1; i <= out.Pages && i <= opts.MaxPages && !tb.Full(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// 单页失败不影响其余页
			continue
		}

		tb.WriteString(strings.TrimSpace(text))
		tb.WriteString("\n")
	}

	out.Text = tb.String()

	return out, nil
}
