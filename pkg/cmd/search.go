package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/arca/pkg/app"
)

var (
	searchSize int

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "search the local full text index (bleve query string syntax)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, currentConfig(), func(a *app.App) error {
				hits, err := a.Search(cmd.Context(), strings.Join(args, " "), searchSize)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSCORE\tCATEGORY\tTITLE")

				for _, h := range hits {
					fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\n", h.RecordID, h.Score, h.Category, h.Title)
				}

				return tw.Flush()
			})
		},
	}
)

// registerSearchCommand 注册检索命令.
func registerSearchCommand() {
	searchCmd.Flags().IntVarP(&searchSize, "size", "n", 10, "maximum number of hits")
	rootCmd.AddCommand(searchCmd)
}
