// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/arca/pkg/app"
	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/model"
	nlog "github.com/yeisme/arca/pkg/log"
	"github.com/yeisme/arca/pkg/metrics"
	"github.com/yeisme/arca/pkg/tracing"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:           "arca",
		Short:         "Catalog, deduplicate and reconcile a digital library",
		Version:       configs.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.InitConfig(configPath); err != nil {
				return err
			}

			if debug {
				configs.GetConfig().Server.Debug = true
			}

			nlog.Init()

			if err := tracing.InitTracer(configs.GetConfig().Tracing); err != nil {
				return err
			}

			return metrics.InitMetrics(configs.GetConfig().Metrics)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return tracing.ShutdownTracer(context.WithoutCancel(cmd.Context()))
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")

	registerRunCommands()
	registerFetchCommand()
	registerExportCommand()
	registerSearchCommand()
	registerServeCommand()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// currentConfig 返回全局配置的副本，命令行参数只修改副本.
func currentConfig() configs.AppConfig {
	return *configs.GetConfig()
}

// withApp 创建 App，执行 fn 后关闭.
func withApp(cmd *cobra.Command, cfg configs.AppConfig, fn func(a *app.App) error) (err error) {
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(a)
}

// printRun 以 JSON 输出运行记录.
func printRun(cmd *cobra.Command, rec model.RunRecord) error {
	b, err := sonic.ConfigStd.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return err
}
