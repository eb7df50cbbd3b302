package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	internalcmd "github.com/scan-io-git/sarifer/internal/cmd"
	"github.com/scan-io-git/sarifer/internal/git"
	"github.com/scan-io-git/sarifer/internal/service"
	"github.com/scan-io-git/sarifer/internal/telemetry"
	"github.com/scan-io-git/sarifer/internal/watcher"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	"github.com/scan-io-git/sarifer/pkg/shared/files"
	"github.com/scan-io-git/sarifer/pkg/shared/logger"
)

// Global variables for configuration and command arguments
var (
	AppConfig         *config.Config
	ConfigPath        string
	exampleWatchUsage = `  # Watching the current folder
  sarifer watch

  # Watching a project and exposing metrics
  SARIFER_LOG_LEVEL=DEBUG sarifer watch /path/to/my_project`
)

// WatchCmd represents the watch command.
var WatchCmd = &cobra.Command{
	Use:                   "watch [PATH]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleWatchUsage,
	Short:                 "Analyses documents of a project in the background as they change",
	Long: `Analyses documents of a project in the background as they change.

Every saved file is analysed with the rules of its project and the SARIF log is written to the
results folder. Removing a file drops its log. The analysis directive of the config file is
re-read on every change, so background analysis can be switched off without a restart.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatchCommand,
}

// Init initializes the global configuration variables.
func Init(cfg *config.Config, configPath string) {
	AppConfig = cfg
	ConfigPath = configPath
}

// runWatchCommand executes the watch command.
func runWatchCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-watch")

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", root, err)
	}
	if err := files.ValidateDir(root); err != nil {
		logger.Error("invalid watch arguments", "error", err)
		return err
	}

	fileSink, err := service.NewFileSink(AppConfig.Sarifer.ResultsFolder, logger.Named("sink"))
	if err != nil {
		logger.Error("failed to prepare the results folder", "error", err)
		return err
	}
	sinks := []service.Sink{fileSink, service.NewLogSink(logger.Named("results"))}

	options := config.NewFileOptions(ConfigPath, AppConfig.Analysis)
	stack, err := internalcmd.NewStack(AppConfig, options, sinks, logger)
	if err != nil {
		logger.Error("failed to initialise the analysis", "error", err)
		return err
	}
	// Documents without a closer rules folder or checkout belong to the watched folder.
	stack.Service.WithRootResolver(git.NewRootResolver(AppConfig.Rules.FolderName, root))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if AppConfig.Rules.Watch {
		rulesDir := filepath.Join(root, AppConfig.Rules.FolderName)
		if err := stack.Cache.Watch(ctx, rulesDir, AppConfig.Watcher.Debounce); err != nil {
			logger.Warn("rule definitions will not be reloaded on change", "dir", rulesDir, "error", err)
		}
	}

	ignore := append(append([]string{}, AppConfig.Watcher.Ignore...), AppConfig.Rules.FolderName)
	w, err := watcher.New(root, handleChanges(ctx, g, stack.Service, logger), watcher.Options{
		Debounce: AppConfig.Watcher.Debounce,
		Ignore:   ignore,
	}, logger.Named("watcher"))
	if err != nil {
		logger.Error("failed to create the document watcher", "error", err)
		return err
	}
	g.Go(func() error {
		return w.Run(ctx)
	})

	if addr := AppConfig.Metrics.ListenAddress; addr != "" {
		serveMetrics(ctx, g, addr, logger)
	}

	logger.Info("watching for document changes", "root", root, "results", AppConfig.Sarifer.ResultsFolder)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watch command failed", "error", err)
		return err
	}

	logger.Info("watch command stopped")
	return nil
}

// serveMetrics runs the metrics endpoint until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, logger hclog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
