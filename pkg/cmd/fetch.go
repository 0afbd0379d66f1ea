package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yeisme/arca/pkg/app"
)

var (
	fetchOutput string

	fetchCmd = &cobra.Command{
		Use:   "fetch <remote-id>",
		Short: "download a remote file (native documents are exported as PDF)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, currentConfig(), func(a *app.App) error {
				st, err := a.Open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				defer st.Close()

				out := fetchOutput
				if out == "" {
					out = filepath.Base(st.Filename)
				}

				var w io.Writer = cmd.OutOrStdout()

				if out != "-" {
					f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
					if err != nil {
						return err
					}
					defer f.Close()

					w = f
				}

				n, err := io.Copy(w, st)
				if err != nil {
					return fmt.Errorf("download %s: %w", args[0], err)
				}

				if out != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s (%s)\n", args[0], out, humanize.IBytes(uint64(n)))
				}

				return nil
			})
		},
	}
)

// registerFetchCommand 注册下载命令.
func registerFetchCommand() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file, - for stdout (default: remote file name)")
	rootCmd.AddCommand(fetchCmd)
}
