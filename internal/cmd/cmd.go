package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/internal/coordinator"
	"github.com/scan-io-git/sarifer/internal/git"
	"github.com/scan-io-git/sarifer/internal/isolation"
	"github.com/scan-io-git/sarifer/internal/ruleset"
	"github.com/scan-io-git/sarifer/internal/service"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
)

// Mode constants
const (
	ModeSingleFile = "single-file"
	ModeProject    = "project"
)

// DetermineMode reports whether path is a single document or a project folder.
func DetermineMode(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return ModeProject, nil
	}
	return ModeSingleFile, nil
}

// CollectTargets lists every regular file under root, skipping directories whose
// base name matches one of ignore. The result is sorted.
func CollectTargets(root string, ignore []string) ([]string, error) {
	var targets []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && matchesAny(d.Name(), ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			targets = append(targets, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect targets under %q: %w", root, err)
	}
	sort.Strings(targets)
	return targets, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Stack holds the components a command drives.
type Stack struct {
	Cache       *ruleset.Cache
	Coordinator *coordinator.Coordinator
	Service     *service.Service
}

// NewStack assembles the rule set cache, the isolation boundary, the coordinator and the
// service on top of them, publishing to sinks.
func NewStack(cfg *config.Config, options config.OptionsSource, sinks []service.Sink, logger hclog.Logger) (*Stack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	launcher, err := isolation.NewProcessLauncher(cfg.Isolation, logger.Named("worker"))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare the analysis worker: %w", err)
	}

	cache := ruleset.NewCache(ruleset.NewDirLoader(cfg.Rules), logger.Named("ruleset"))
	coord := coordinator.New(cache, isolation.New(launcher, logger.Named("isolation")), options, logger.Named("coordinator"))
	svc := service.New(coord, options, sinks, logger.Named("service")).
		WithRootResolver(git.NewRootResolver(cfg.Rules.FolderName, ""))

	return &Stack{
		Cache:       cache,
		Coordinator: coord,
		Service:     svc,
	}, nil
}
