package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/sarifer/cmd/analyse"
	"github.com/scan-io-git/sarifer/cmd/version"
	"github.com/scan-io-git/sarifer/cmd/watch"
	"github.com/scan-io-git/sarifer/cmd/worker"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	sharederrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "sarifer [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Sarifer runs pattern rules against documents and reports the findings as SARIF.",
		Long: `Sarifer runs the pattern rules of a project against its documents in an isolated worker
	process and reports the findings as SARIF logs, either once or in the background as files change.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml, or $SARIFER_CONFIG)")
	rootCmd.AddCommand(analyse.AnalyseCmd)
	rootCmd.AddCommand(watch.WatchCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		var cmdErr *sharederrors.CommandError
		if errors.As(err, &cmdErr) {
			return cmdErr.ExitCode
		}
		return 1
	}
	return 0
}

// initConfig writes to stderr only: stdout of the worker command carries the plugin handshake.
func initConfig() {
	var err error

	if cfgFile == "" {
		cfgFile = os.Getenv("SARIFER_CONFIG")
	}
	if cfgFile == "" {
		cfgFile = "config.yml"
	}
	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing config file function is crashed - %v \n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	analyse.Init(AppConfig)
	watch.Init(AppConfig, cfgFile)
}
