// Package hasher 计算文件内容指纹.
//
// 指纹只取决于字节内容，与路径、修改时间和权限无关；读取按固定大小分块流式进行，
// 任意大小的文件都以常量内存完成摘要.
package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/arca/pkg/internal/errs"
)

// Algorithm 摘要算法.
type Algorithm string

const (
	// MD5 与 Google Drive md5Checksum 及单段上传的 S3 ETag 一致，作为目录身份.
	MD5 Algorithm = "md5"
	// SHA256 更严格的摘要，用于重复文件判定.
	SHA256 Algorithm = "sha256"
)

// BufferSize 流式读取的分块大小.
const BufferSize = 64 * 1024

// QuickPrefix QuickSum 读取的前缀长度.
const QuickPrefix = 64 * 1024

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, BufferSize)
		return &b
	},
}

// Hasher 按指定算法计算十六进制摘要，可并发使用.
type Hasher struct {
	alg     Algorithm
	newHash func() hash.Hash
}

// New 创建指定算法的 Hasher.
func New(alg Algorithm) (*Hasher, error) {
	switch alg {
	case MD5, "":
		return &Hasher{alg: MD5, newHash: md5.New}, nil
	case SHA256:
		return &Hasher{alg: SHA256, newHash: sha256.New}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", alg)
	}
}

// MustNew 与 New 相同，算法不支持时 panic.
func MustNew(alg Algorithm) *Hasher {
	h, err := New(alg)
	if err != nil {
		panic(err)
	}

	return h
}

// Algorithm 返回算法名称.
func (h *Hasher) Algorithm() Algorithm { return h.alg }

// Sum 读取 r 直到 EOF 并返回十六进制摘要.
func (h *Hasher) Sum(r io.Reader) (string, error) {
	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	d := h.newHash()
	if _, err := io.CopyBuffer(d, r, *bp); err != nil {
		return "", err
	}

	return hex.EncodeToString(d.Sum(nil)), nil
}

// SumFile 计算文件摘要，返回摘要与读取的字节数.
// 打开或读取失败包装为 errs.ErrTransientFile.
func (h *Hasher) SumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errs.E(errs.KindTransientFile, "hash", path, err)
	}
	defer f.Close()

	cr := &countingReader{r: f}

	sum, err := h.Sum(cr)
	if err != nil {
		return "", cr.n, errs.E(errs.KindTransientFile, "hash", path, err)
	}

	return sum, cr.n, nil
}

// QuickSum 以 xxhash64 计算文件前 QuickPrefix 字节与文件大小的组合值.
// 仅用于重复判定前的快速分桶，不能作为内容身份.
func QuickSum(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errs.E(errs.KindTransientFile, "quicksum", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errs.E(errs.KindTransientFile, "quicksum", path, err)
	}

	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	d := xxhash.New()

	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
	_, _ = d.Write(size[:])

	if _, err := io.CopyBuffer(d, io.LimitReader(f, QuickPrefix), *bp); err != nil {
		return 0, errs.E(errs.KindTransientFile, "quicksum", path, err)
	}

	return d.Sum64(), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)

	return n, err
}
