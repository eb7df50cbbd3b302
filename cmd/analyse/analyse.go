package analyse

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalcmd "github.com/scan-io-git/sarifer/internal/cmd"
	"github.com/scan-io-git/sarifer/internal/sarif"
	"github.com/scan-io-git/sarifer/internal/service"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	"github.com/scan-io-git/sarifer/pkg/shared/errors"
	"github.com/scan-io-git/sarifer/pkg/shared/logger"
)

// RunOptionsAnalyse holds the arguments for the analyse command.
type RunOptionsAnalyse struct {
	OutputPath   string
	IncludePass  bool
	AnalyzeSarif bool
}

// Global variables for configuration and command arguments
var (
	AppConfig           *config.Config
	analyseOptions      RunOptionsAnalyse
	exampleAnalyseUsage = `  # Analysing a single file with the rules of its project
  sarifer analyse /path/to/my_project/src/app.js

  # Analysing every file of a project in one run
  sarifer analyse /path/to/my_project

  # Analysing a project and saving the log to a specific file
  sarifer analyse /path/to/my_project --output /path/to/results/report.sarif

  # Reporting rules that ran without a match as pass results
  sarifer analyse /path/to/my_project --include-pass`
)

// AnalyseCmd represents the analyse command.
var AnalyseCmd = &cobra.Command{
	Use:                   "analyse [--output/-o PATH] [--include-pass] [--analyze-sarif] PATH",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleAnalyseUsage,
	Short:                 "Runs the pattern rules of a project against a file or the whole project",
	Long: `Runs the pattern rules of a project against a file or the whole project.

Rules are read from the rules folder at the project root (.spam by default). The analysis runs
in an isolated worker process and the result is written as a SARIF log.`,
	RunE: runAnalyseCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runAnalyseCommand executes the analyse command.
func runAnalyseCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !hasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	logger := logger.NewLogger(AppConfig, "core-analyse")

	if err := validateAnalyseArgs(&analyseOptions, args); err != nil {
		logger.Error("invalid analyse arguments", "error", err)
		return err
	}

	target, mode, err := prepareTarget(args[0])
	if err != nil {
		logger.Error("failed to prepare the analysis target", "error", err)
		return err
	}

	options := config.StaticOptions(analysisOptions(AppConfig.Analysis, &analyseOptions))
	stack, err := internalcmd.NewStack(AppConfig, options, []service.Sink{service.NewLogSink(logger)}, logger)
	if err != nil {
		logger.Error("failed to initialise the analysis", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := run(ctx, stack, target, mode)
	if err != nil {
		logger.Error("analyse command failed", "error", err)
		return err
	}

	outputPath, err := writeLog(log, analyseOptions.OutputPath, AppConfig.Sarifer.ResultsFolder, target)
	if err != nil {
		logger.Error("failed to write result", "error", err)
		return err
	}

	logger.Info("analyse command completed successfully", "output", outputPath)
	return nil
}

func run(ctx context.Context, stack *internalcmd.Stack, target, mode string) (*sarif.ResultLog, error) {
	var log *sarif.ResultLog
	switch mode {
	case internalcmd.ModeSingleFile:
		log = stack.Service.OnDocumentReady(ctx, target, nil)
	case internalcmd.ModeProject:
		targets, err := internalcmd.CollectTargets(target, ignoredFolders(AppConfig))
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 {
			return nil, errors.NewCommandError(fmt.Errorf("no files to analyse under %q", target), 2)
		}
		log = stack.Service.AnalyzeProject(ctx, target, targets)
	default:
		return nil, fmt.Errorf("invalid analysing mode: %s", mode)
	}

	if log == nil {
		err := fmt.Errorf("no results for %q: the analysis failed, see the log above", target)
		if stack.Cache.Current().Empty() {
			err = fmt.Errorf("no results for %q: %w", target, errors.ErrNoRules)
		}
		return nil, errors.NewCommandError(err, 2)
	}
	return log, nil
}

// Initialize flags for the analyse command.
func init() {
	AnalyseCmd.Flags().BoolP("help", "h", false, "Show help for the analyse command.")
	AnalyseCmd.Flags().StringVarP(&analyseOptions.OutputPath, "output", "o", "", "Path to the output file or directory where the SARIF log will be saved.")
	AnalyseCmd.Flags().BoolVar(&analyseOptions.IncludePass, "include-pass", false, "Report rules that ran without a match as pass results.")
	AnalyseCmd.Flags().BoolVar(&analyseOptions.AnalyzeSarif, "analyze-sarif", false, "Analyse .sarif files instead of skipping them.")
}
