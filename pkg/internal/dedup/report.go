package dedup

import (
	"bufio"
	"fmt"
	"io"
)

const reportHeader = "REPORTE DE DUPLICADOS EL ARCA\n=============================\n\n"

// WriteReport 按固定格式写出报告，供人工复核工具解析.
//
//	GRUPO <fp[:8]> (Contenido Idéntico):
//	   ✅ ORIGINAL (Conservado): <path>
//	   🚫 MOVIDO A CUARENTENA: <path> -> <name>
//	   ❌ ERROR MOVIENDO: <path> - <error>
//
// 演练模式下移动行写作 "🔎 SE MOVERÍA A CUARENTENA".
func WriteReport(w io.Writer, results []Result) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(reportHeader); err != nil {
		return err
	}

	for _, res := range results {
		prefix := res.Fingerprint
		if len(prefix) > PrefixLen {
			prefix = prefix[:PrefixLen]
		}

		fmt.Fprintf(bw, "GRUPO %s (Contenido Idéntico):\n", prefix)
		fmt.Fprintf(bw, "   ✅ ORIGINAL (Conservado): %s\n", res.Survivor)

		for _, rel := range res.Relocations {
			switch {
			case rel.Err != nil:
				fmt.Fprintf(bw, "   ❌ ERROR MOVIENDO: %s - %v\n", rel.Path, rel.Err)
			case res.DryRun:
				fmt.Fprintf(bw, "   🔎 SE MOVERÍA A CUARENTENA: %s -> %s\n", rel.Path, rel.Name)
			default:
				fmt.Fprintf(bw, "   🚫 MOVIDO A CUARENTENA: %s -> %s\n", rel.Path, rel.Name)
			}
		}

		bw.WriteString("\n")
	}

	return bw.Flush()
}
