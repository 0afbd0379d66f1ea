package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// maxPartSize 单个压缩包成员的读取上限，防止压缩炸弹.
const maxPartSize = 32 << 20

// extractDOCX 读取 word/document.xml 的前 MaxParagraphs 个段落.
func extractDOCX(p string, opts Options) (Preview, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return Preview{}, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	part, err := openPart(&zr.Reader, "word/document.xml")
	if err != nil {
		return Preview{}, err
	}
	defer part.Close()

	paras, err := collectParagraphs(part, "p", "t", opts.MaxParagraphs, opts.MaxChars)
	if err != nil {
		return Preview{}, fmt.Errorf("parse docx: %w", err)
	}

	return Preview{Text: strings.Join(paras, "\n")}, nil
}

// extractPPTX 按幻灯片编号顺序读取前 MaxPages 张幻灯片.
func extractPPTX(p string, opts Options) (Preview, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return Preview{}, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	slides := slideParts(&zr.Reader)
	out := Preview{Pages: len(slides)}
	tb := newTextBuilder(opts.MaxChars)

	for i, name := range slides {
		if i >= opts.MaxPages || tb.Full() {
			break
		}

		part, err := openPart(&zr.Reader, name)
		if err != nil {
			return out, err
		}

		paras, err := collectParagraphs(part, "p", "t", 0, opts.MaxChars)
		part.Close()

		if err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}

		for _, para := range paras {
			tb.WriteString(para)
			tb.WriteString("\n")
		}
	}

	out.Text = tb.String()

	return out, nil
}

// slideParts 返回 ppt/slides/slideN.xml 成员名，按 N 升序.
func slideParts(zr *zip.Reader) []string {
	type slide struct {
		name string
		n    int
	}

	var slides []slide

	for _, f := range zr.File {
		dir, base := path.Split(f.Name)
		if dir != "ppt/slides/" || !strings.HasPrefix(base, "slide") || !strings.HasSuffix(base, ".xml") {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "slide"), ".xml"))
		if err != nil {
			continue
		}

		slides = append(slides, slide{name: f.Name, n: n})
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	names := make([]string, len(slides))
	for i, s := range slides {
		names[i] = s.name
	}

	return names
}

// openPart 打开压缩包中的成员.
func openPart(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}

		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(rc, maxPartSize), rc}, nil
	}

	return nil, fmt.Errorf("missing part %s", name)
}

// collectParagraphs 流式解析 OOXML，按段落元素收集文本节点.
// paraLocal 与 textLocal 为元素本地名（w:p/w:t 与 a:p/a:t 相同）.
// maxParas 为 0 表示不限段落数；空段落不计数.
func collectParagraphs(r io.Reader, paraLocal, textLocal string, maxParas, maxChars int) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paras  []string
		cur    strings.Builder
		inText bool
		total  int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return paras, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case textLocal:
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textLocal:
				inText = false
			case paraLocal:
				text := strings.TrimSpace(cur.String())
				cur.Reset()

				if text == "" {
					continue
				}

				paras = append(paras, text)
				total += len(text)

				if (maxParas > 0 && len(paras) >= maxParas) || (maxChars > 0 && total >= maxChars*4) {
					return paras, nil
				}
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}

	if text := strings.TrimSpace(cur.String()); text != "" {
		paras = append(paras, text)
	}

	return paras, nil
}
