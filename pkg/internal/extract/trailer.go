package extract

import (
	"bytes"
	"io"
	"strconv"
)

const (
	tailWindow = 1024
	scanChunk  = 32 << 10
	maxDict    = 64 << 10
)

// trailerEncrypted 报告最后一个交叉引用段的 trailer 字典（或 XRef 流字典）是否含 /Encrypt.
// 用于 pdf 库拒绝打开的文件，例如 AES-256（V=5）加密.
func trailerEncrypted(r io.ReaderAt, size int64) bool {
	off, ok := startXref(r, size)
	if !ok {
		return false
	}

	head := make([]byte, 64)
	n, _ := r.ReadAt(head, off)
	head = head[:n]
	lead := bytes.TrimLeft(head, " \t\r\n\f\x00")
	skipped := int64(len(head) - len(lead))

	var dictAt int64

	switch {
	case bytes.HasPrefix(lead, []byte("xref")):
		// 跳过 xref 表项找到 trailer 关键字
		at := indexFrom(r, off+skipped, size, []byte("trailer"))
		if at < 0 {
			return false
		}

		dictAt = indexFrom(r, at, min(at+256, size), []byte("<<"))
	case len(lead) > 0 && lead[0] >= '0' && lead[0] <= '9':
		// XRef 流：N G obj << ... >>
		i := bytes.Index(lead, []byte("<<"))
		if i < 0 {
			return false
		}

		dictAt = off + skipped + int64(i)
	default:
		return false
	}

	if dictAt < 0 {
		return false
	}

	buf := make([]byte, min(maxDict, size-dictAt))
	n, _ = r.ReadAt(buf, dictAt)

	return dictHasKey(buf[:n], "Encrypt")
}

// startXref 读取文件末尾 startxref 之后的偏移量.
func startXref(r io.ReaderAt, size int64) (int64, bool) {
	tail := make([]byte, min(tailWindow, size))
	n, _ := r.ReadAt(tail, size-int64(len(tail)))
	tail = tail[:n]

	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, false
	}

	fields := bytes.Fields(tail[i+len("startxref"):])
	if len(fields) == 0 {
		return 0, false
	}

	off, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil || off < 0 || off >= size {
		return 0, false
	}

	return off, true
}

// indexFrom 在 [start, end) 中查找 pat 的绝对偏移，找不到返回 -1.
func indexFrom(r io.ReaderAt, start, end int64, pat []byte) int64 {
	buf := make([]byte, scanChunk+len(pat)-1)

	for pos := start; pos < end; pos += scanChunk {
		want := min(int64(len(buf)), end-pos)

		n, _ := r.ReadAt(buf[:want], pos)
		if n <= 0 {
			return -1
		}

		if i := bytes.Index(buf[:n], pat); i >= 0 {
			return pos + int64(i)
		}
	}

	return -1
}

// dictHasKey 报告以 << 开头的字典在顶层是否有名为 key 的条目.
// 嵌套字典、数组、字符串与注释中的同名内容不算.
func dictHasKey(b []byte, key string) bool {
	depth, arr := 0, 0

	for i := 0; i < len(b); i++ {
		c := b[i]

		switch {
		case c == '%':
			for i < len(b) && b[i] != '\n' && b[i] != '\r' {
				i++
			}
		case c == '(':
			i = skipLiteral(b, i)
		case c == '<' && i+1 < len(b) && b[i+1] == '<':
			depth++
			i++
		case c == '<':
			for i < len(b) && b[i] != '>' {
				i++
			}
		case c == '>' && i+1 < len(b) && b[i+1] == '>':
			depth--
			i++

			if depth <= 0 {
				return false
			}
		case c == '[':
			arr++
		case c == ']':
			arr--
		case c == '/':
			j := i + 1
			for j < len(b) && !isDelimiter(b[j]) {
				j++
			}

			if depth == 1 && arr == 0 && string(b[i+1:j]) == key {
				return true
			}

			i = j - 1
		}
	}

	return false
}

// skipLiteral 返回字面字符串 (...) 结束括号的位置，处理嵌套括号与反斜杠转义.
func skipLiteral(b []byte, i int) int {
	level := 0

	for ; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '(':
			level++
		case ')':
			level--
			if level == 0 {
				return i
			}
		}
	}

	return i
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}

	return false
}
