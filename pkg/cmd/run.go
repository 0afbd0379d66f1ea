package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/arca/pkg/app"
	"github.com/yeisme/arca/pkg/configs"
)

var (
	scanRoot    string
	scanWorkers int
	scanDryRun  bool
	scanDedup   bool

	reconcileFolder string
	reconcileDryRun bool

	dedupRoot       string
	dedupQuarantine string
	dedupReport     string
	dedupDryRun     bool

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "scan the local library and catalog new files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentConfig()
			if scanRoot != "" {
				cfg.Library.Root = scanRoot
			}

			if scanWorkers > 0 {
				cfg.Library.Workers = scanWorkers
			}

			return withApp(cmd, cfg, func(a *app.App) error {
				// 先隔离重复文件，再登记剩余文件
				if scanDedup {
					rec, err := a.Dedup(cmd.Context(), scanDryRun)
					if perr := printRun(cmd, rec); perr != nil {
						return perr
					}

					if err != nil {
						return err
					}
				}

				rec, err := a.Scan(cmd.Context(), scanDryRun)
				if perr := printRun(cmd, rec); perr != nil {
					return perr
				}

				return err
			})
		},
	}

	reconcileCmd = &cobra.Command{
		Use:     "reconcile",
		Aliases: []string{"sync"},
		Short:   "reconcile remote catalog entries with the remote folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentConfig()
			if reconcileFolder != "" {
				cfg.Remote.Folder = reconcileFolder
			}

			return withApp(cmd, cfg, func(a *app.App) error {
				rec, err := a.Reconcile(cmd.Context(), reconcileDryRun)
				if perr := printRun(cmd, rec); perr != nil {
					return perr
				}

				return err
			})
		},
	}

	dedupCmd = &cobra.Command{
		Use:   "dedup",
		Short: "move duplicate files into the quarantine folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentConfig()
			applyDedupFlags(&cfg)

			return withApp(cmd, cfg, func(a *app.App) error {
				rec, err := a.Dedup(cmd.Context(), dedupDryRun)
				if perr := printRun(cmd, rec); perr != nil {
					return perr
				}

				return err
			})
		},
	}
)

func applyDedupFlags(cfg *configs.AppConfig) {
	if dedupRoot != "" {
		cfg.Library.Root = dedupRoot
	}

	if dedupQuarantine != "" {
		cfg.Quarantine.Dir = dedupQuarantine
	}

	if dedupReport != "" {
		cfg.Quarantine.Report = dedupReport
	}
}

// registerRunCommands 注册批处理命令.
func registerRunCommands() {
	scanCmd.Flags().StringVar(&scanRoot, "root", "", "library root (overrides library.root)")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "parallel workers (overrides library.workers)")
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "report without changing the catalog")
	scanCmd.Flags().BoolVar(&scanDedup, "dedup", false, "quarantine duplicates before scanning")

	reconcileCmd.Flags().StringVar(&reconcileFolder, "folder", "", "remote folder (overrides remote.folder)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "report without changing the catalog")

	dedupCmd.Flags().StringVar(&dedupRoot, "root", "", "library root (overrides library.root)")
	dedupCmd.Flags().StringVar(&dedupQuarantine, "quarantine", "", "quarantine folder (overrides quarantine.dir)")
	dedupCmd.Flags().StringVar(&dedupReport, "report", "", "report file (overrides quarantine.report)")
	dedupCmd.Flags().BoolVar(&dedupDryRun, "dry-run", false, "report without moving files")

	rootCmd.AddCommand(scanCmd, reconcileCmd, dedupCmd)
}
