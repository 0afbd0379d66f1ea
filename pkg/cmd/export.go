package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yeisme/arca/pkg/app"
)

var (
	exportOutput string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "write the catalog inventory as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, currentConfig(), func(a *app.App) error {
				var w io.Writer = cmd.OutOrStdout()

				if exportOutput != "" && exportOutput != "-" {
					f, err := os.Create(exportOutput)
					if err != nil {
						return err
					}
					defer f.Close()

					w = f
				}

				n, err := a.Export(cmd.Context(), w)
				if err != nil {
					return err
				}

				if w != cmd.OutOrStdout() {
					fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", n, exportOutput)
				}

				return nil
			})
		},
	}
)

// registerExportCommand 注册导出命令.
func registerExportCommand() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}
