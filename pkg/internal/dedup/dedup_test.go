package dedup_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/internal/dedup"
	"github.com/yeisme/arca/pkg/internal/scan"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()

	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newResolver(t *testing.T, root string, dryRun bool) *dedup.Resolver {
	t.Helper()

	r, err := dedup.New(dedup.Options{
		Root:          root,
		QuarantineDir: filepath.Join(root, "_CUARENTENA_DUPLICADOS"),
		ReportPath:    filepath.Join(root, "reporte_duplicados.txt"),
		DryRun:        dryRun,
	}, zerolog.Nop())
	require.NoError(t, err)

	return r
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TestShortestNameSurvives 测试三份相同内容时保留最短文件名.
func TestShortestNameSurvives(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.pdf", "mismo")
	write(t, root, "a_longer_name.pdf", "mismo")
	write(t, root, "c.pdf", "mismo")
	write(t, root, "unico.pdf", "otro!")

	sum, err := newResolver(t, root, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Files)
	assert.Equal(t, 2, sum.UniqueContents)
	assert.Equal(t, 1, sum.Groups)
	assert.Equal(t, 2, sum.Moved)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, int64(10), sum.BytesReclaimed)

	assert.True(t, exists(filepath.Join(root, "b.pdf")))
	assert.False(t, exists(filepath.Join(root, "a_longer_name.pdf")))
	assert.False(t, exists(filepath.Join(root, "c.pdf")))

	report, err := os.ReadFile(sum.ReportPath)
	require.NoError(t, err)

	text := string(report)
	assert.True(t, strings.HasPrefix(text, "REPORTE DE DUPLICADOS EL ARCA\n=============================\n\n"))
	assert.Contains(t, text, "   ✅ ORIGINAL (Conservado): b.pdf\n")
	assert.Contains(t, text, "   🚫 MOVIDO A CUARENTENA: a_longer_name.pdf -> ")
	assert.Contains(t, text, "   🚫 MOVIDO A CUARENTENA: c.pdf -> ")

	moved, err := os.ReadDir(filepath.Join(root, "_CUARENTENA_DUPLICADOS"))
	require.NoError(t, err)
	require.Len(t, moved, 2)

	for _, m := range moved {
		assert.Regexp(t, `^[0-9a-f]{8}_(a_longer_name|c)\.pdf$`, m.Name())
	}
}

// TestTieBrokenByEnumerationOrder 测试文件名等长时保留遍历顺序靠前者.
func TestTieBrokenByEnumerationOrder(t *testing.T) {
	members := []scan.Entry{{Name: "zz.pdf"}, {Name: "aa.pdf"}, {Name: "ñandú.pdf"}, {Name: "x.pdf"}}
	assert.Equal(t, 3, dedup.Survivor(members))

	members = []scan.Entry{{Name: "zz.pdf"}, {Name: "aa.pdf"}}
	assert.Equal(t, 0, dedup.Survivor(members))

	// 按 rune 而不是字节计
	members = []scan.Entry{{Name: "abcd.pdf"}, {Name: "ñáé.pdf"}}
	assert.Equal(t, 1, dedup.Survivor(members))
}

// TestQuarantineNeverOverwrites 测试隔离目录中已有同名文件时使用计数.
func TestQuarantineNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.pdf", "mismo")
	write(t, root, "sub/ab.pdf", "mismo")

	r := newResolver(t, root, true)
	entries, err := scan.Walk(context.Background(), root, scan.WalkOptions{})
	require.NoError(t, err)

	groups, _, err := r.FindGroups(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	prefix := groups[0].Prefix()
	write(t, root, "_CUARENTENA_DUPLICADOS/"+prefix+"_ab.pdf", "previo")

	sum, err := newResolver(t, root, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Moved)

	prev, err := os.ReadFile(filepath.Join(root, "_CUARENTENA_DUPLICADOS", prefix+"_ab.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "previo", string(prev))

	assert.True(t, exists(filepath.Join(root, "_CUARENTENA_DUPLICADOS", prefix+"_2_ab.pdf")))
}

// TestSameNameInDifferentDirs 测试不同目录下的同名副本不会互相覆盖.
func TestSameNameInDifferentDirs(t *testing.T) {
	root := t.TempDir()
	write(t, root, "x/libro.pdf", "mismo")
	write(t, root, "y/libro.pdf", "mismo")
	write(t, root, "z/libro.pdf", "mismo")

	sum, err := newResolver(t, root, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Moved)
	assert.True(t, exists(filepath.Join(root, "x/libro.pdf")))

	moved, _ := os.ReadDir(filepath.Join(root, "_CUARENTENA_DUPLICADOS"))
	assert.Len(t, moved, 2)
}

// TestDryRunMovesNothing 测试演练模式只写报告.
func TestDryRunMovesNothing(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.pdf", "mismo")
	write(t, root, "cc.pdf", "mismo")

	sum, err := newResolver(t, root, true).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Moved)
	assert.True(t, exists(filepath.Join(root, "cc.pdf")))
	assert.False(t, exists(filepath.Join(root, "_CUARENTENA_DUPLICADOS")))

	report, err := os.ReadFile(sum.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "🔎 SE MOVERÍA A CUARENTENA: cc.pdf -> ")
}

// TestNoDuplicatesNoReport 测试没有重复时不写报告.
func TestNoDuplicatesNoReport(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.pdf", "uno")
	write(t, root, "b.pdf", "dos")
	write(t, root, ".DS_Store", "dos")
	write(t, root, "~$b.pdf", "dos")

	sum, err := newResolver(t, root, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Files)
	assert.Zero(t, sum.Groups)
	assert.Empty(t, sum.ReportPath)
	assert.False(t, exists(filepath.Join(root, "reporte_duplicados.txt")))
}

// TestQuarantineContentsIgnored 测试第二次运行不会处理隔离目录中的文件.
func TestQuarantineContentsIgnored(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.pdf", "mismo")
	write(t, root, "cc.pdf", "mismo")

	_, err := newResolver(t, root, false).Run(context.Background())
	require.NoError(t, err)

	sum, err := newResolver(t, root, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Files)
	assert.Zero(t, sum.Groups)
}

// TestCancelled 测试取消.
func TestCancelled(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.pdf", "mismo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := newResolver(t, root, false).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, sum.Cancelled)
}

// TestWriteReportFormat 测试报告的逐字格式.
func TestWriteReportFormat(t *testing.T) {
	var buf bytes.Buffer

	err := dedup.WriteReport(&buf, []dedup.Result{{
		Fingerprint: "0123456789abcdef",
		Survivor:    "libros/b.pdf",
		Relocations: []dedup.Relocation{
			{Path: "libros/copia/a_longer_name.pdf", Name: "01234567_a_longer_name.pdf"},
			{Path: "c.pdf", Err: errors.New("permission denied")},
		},
	}})
	require.NoError(t, err)

	want := "REPORTE DE DUPLICADOS EL ARCA\n" +
		"=============================\n\n" +
		"GRUPO 01234567 (Contenido Idéntico):\n" +
		"   ✅ ORIGINAL (Conservado): libros/b.pdf\n" +
		"   🚫 MOVIDO A CUARENTENA: libros/copia/a_longer_name.pdf -> 01234567_a_longer_name.pdf\n" +
		"   ❌ ERROR MOVIENDO: c.pdf - permission denied\n" +
		"\n"
	assert.Equal(t, want, buf.String())
}
