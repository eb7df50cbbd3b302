package analyse

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	internalcmd "github.com/scan-io-git/sarifer/internal/cmd"
	"github.com/scan-io-git/sarifer/internal/sarif"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	"github.com/scan-io-git/sarifer/pkg/shared/files"
)

// hasFlags reports whether any flag was set on the command line.
func hasFlags(flags *pflag.FlagSet) bool {
	changed := false
	flags.Visit(func(*pflag.Flag) {
		changed = true
	})
	return changed
}

// prepareTarget resolves the target path and the mode it is analysed in.
func prepareTarget(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	mode, err := internalcmd.DetermineMode(abs)
	if err != nil {
		return "", "", fmt.Errorf("failed to inspect %q: %w", abs, err)
	}
	return abs, mode, nil
}

// analysisOptions applies the command line switches on top of the configured options.
// A one-shot analysis always runs, whatever the background analysis switch says.
func analysisOptions(base config.AnalysisOptions, opts *RunOptionsAnalyse) config.AnalysisOptions {
	base.BackgroundAnalysisEnabled = true
	base.IncludePassResults = base.IncludePassResults || opts.IncludePass
	base.AnalyzeSarifArtifacts = base.AnalyzeSarifArtifacts || opts.AnalyzeSarif
	return base
}

// ignoredFolders are the folders a project walk never descends into.
func ignoredFolders(cfg *config.Config) []string {
	ignore := append([]string{}, cfg.Watcher.Ignore...)
	return append(ignore, cfg.Rules.FolderName)
}

// writeLog saves log to outputPath, or to the results folder when no output is given.
func writeLog(log *sarif.ResultLog, outputPath, resultsFolder, target string) (string, error) {
	name := fmt.Sprintf("%s-%s.sarif", sanitizeName(filepath.Base(target)), time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	if outputPath == "" {
		outputPath = resultsFolder
	}

	fullPath, folder, err := files.DetermineFileFullPath(outputPath, name)
	if err != nil {
		return "", err
	}
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return "", err
	}

	data, err := log.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to encode the result log: %w", err)
	}
	if err := files.WriteJsonFile(fullPath, data); err != nil {
		return "", err
	}
	return fullPath, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "sarifer"
	}
	return strings.NewReplacer(" ", "_", ":", "_").Replace(name)
}
