package commands

import (
	"context"
	"fmt"
	"os"

	"ficsync/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpHttp   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The config file to read, config.local.json5 next to it overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug information.")
	rootCmd.PersistentFlags().StringVar(&dumpHttp, "dump-http", "", "Write a transcript of every archive request to this directory, it is cleared first.")
}

var rootCmd = &cobra.Command{
	Use:   "ficsync",
	Short: "ficsync downloads works and series from the archive and delivers them to your e-readers.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, verbose)
	},
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
