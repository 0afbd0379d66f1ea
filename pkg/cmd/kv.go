package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	kv "github.com/yeisme/arca/pkg/internal/storage/kv"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store related commands",
		Aliases: []string{"keyvalue", "state"},
	}

	kvListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered kv types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")
			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+t)
			}
		},
	}

	kvRunsCmd = &cobra.Command{
		Use:   "runs",
		Short: "print the last run of every job from the state store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentConfig()

			store, err := kv.New(cmd.Context(), cfg.State)
			if err != nil {
				return err
			}

			runs := kv.NewRuns(store, cfg.State.TTL)
			defer runs.Close()

			list, err := runs.List(cmd.Context())
			if err != nil {
				return err
			}

			b, err := sonic.ConfigStd.MarshalIndent(list, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(b))

			return nil
		},
	}
)

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvListCmd, kvRunsCmd)
}
