package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID   string `xml:"id,attr"`
		Href string `xml:"href,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// extractEPUB 按 spine 顺序读取 XHTML 章节的可见文本，直到达到字符上限.
func extractEPUB(p string, opts Options) (Preview, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return Preview{}, fmt.Errorf("open epub: %w", err)
	}
	defer zr.Close()

	var container epubContainer
	if err := decodePart(&zr.Reader, "META-INF/container.xml", &container); err != nil {
		return Preview{}, err
	}

	if len(container.Rootfiles) == 0 {
		return Preview{}, fmt.Errorf("epub without rootfile")
	}

	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := decodePart(&zr.Reader, opfPath, &pkg); err != nil {
		return Preview{}, err
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}

	out := Preview{Pages: len(pkg.Spine)}
	tb := newTextBuilder(opts.MaxChars)
	base := path.Dir(opfPath)

	for _, ref := range pkg.Spine {
		if tb.Full() {
			break
		}

		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}

		part, err := openPart(&zr.Reader, path.Join(base, href))
		if err != nil {
			continue
		}

		err = htmlText(part, tb)
		part.Close()

		if err != nil {
			return out, fmt.Errorf("parse %s: %w", href, err)
		}
	}

	out.Text = tb.String()

	return out, nil
}

func decodePart(zr *zip.Reader, name string, v any) error {
	part, err := openPart(zr, name)
	if err != nil {
		return err
	}
	defer part.Close()

	if err := xml.NewDecoder(part).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}

	return nil
}

// htmlText 收集 body 中的可见文本，跳过 script 与 style.
func htmlText(r io.Reader, tb *textBuilder) error {
	z := html.NewTokenizer(r)
	skip := 0

	for !tb.Full() {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return nil
			}

			return z.Err()
		case html.StartTagToken:
			if name, _ := z.TagName(); isInvisible(name) {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isInvisible(name) && skip > 0 {
				skip--
			}

			if isBlock(name) {
				tb.WriteString("\n")
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}

			if text := strings.Join(strings.Fields(string(z.Text())), " "); text != "" {
				tb.WriteString(text)
				tb.WriteString(" ")
			}
		}
	}

	return nil
}

func isInvisible(tag []byte) bool {
	switch string(tag) {
	case "script", "style", "head", "title":
		return true
	}

	return false
}

func isBlock(tag []byte) bool {
	switch string(tag) {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "br", "section":
		return true
	}

	return false
}
