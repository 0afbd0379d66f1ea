package hasher_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/internal/hasher"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))

	return p
}

// TestKnownDigests 测试已知向量.
func TestKnownDigests(t *testing.T) {
	md5h := hasher.MustNew(hasher.MD5)
	sha := hasher.MustNew(hasher.SHA256)

	got, err := md5h.Sum(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", got)

	got, err = sha.Sum(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

// TestIdenticalContentIdenticalDigest 测试相同内容（不同路径、权限）得到相同指纹，不同内容得到不同指纹.
func TestIdenticalContentIdenticalDigest(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("arca"), hasher.BufferSize) // 跨越多个分块

	a := writeFile(t, dir, "a.pdf", data)
	b := writeFile(t, filepath.Join(dir), "copia de a.pdf", data)
	require.NoError(t, os.Chmod(b, 0o400))

	other := append(bytes.Clone(data), '!')
	c := writeFile(t, dir, "c.pdf", other)

	for _, alg := range []hasher.Algorithm{hasher.MD5, hasher.SHA256} {
		h := hasher.MustNew(alg)

		da, na, err := h.SumFile(a)
		require.NoError(t, err)
		db, _, err := h.SumFile(b)
		require.NoError(t, err)
		dc, _, err := h.SumFile(c)
		require.NoError(t, err)

		assert.Equal(t, da, db, alg)
		assert.NotEqual(t, da, dc, alg)
		assert.Equal(t, int64(len(data)), na)
	}
}

// TestSumFileMissing 测试不可读文件返回可重试的单文件错误.
func TestSumFileMissing(t *testing.T) {
	_, _, err := hasher.MustNew(hasher.MD5).SumFile(filepath.Join(t.TempDir(), "nope.pdf"))

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTransientFile)
	assert.True(t, errs.IsRetryable(err))
}

// TestQuickSum 测试快速指纹：相同内容相同，尺寸不同则不同.
func TestQuickSum(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", []byte("same"))
	b := writeFile(t, dir, "b", []byte("same"))
	c := writeFile(t, dir, "c", []byte("same\x00"))

	qa, err := hasher.QuickSum(a)
	require.NoError(t, err)
	qb, err := hasher.QuickSum(b)
	require.NoError(t, err)
	qc, err := hasher.QuickSum(c)
	require.NoError(t, err)

	assert.Equal(t, qa, qb)
	assert.NotEqual(t, qa, qc)
}

// TestUnsupportedAlgorithm 测试不支持的算法.
func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := hasher.New("crc32")
	assert.Error(t, err)
}
