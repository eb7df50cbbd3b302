package service

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/internal/coordinator"
	"github.com/scan-io-git/sarifer/internal/git"
	"github.com/scan-io-git/sarifer/internal/sarif"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
)

// Analyzer is the part of the coordinator the service drives.
type Analyzer interface {
	Analyze(ctx context.Context, req coordinator.AnalysisRequest) *sarif.ResultLog
	AnalyzeBatch(ctx context.Context, root string, targets []string) *sarif.ResultLog
}

// RootResolver maps a target to the project root its rules live under.
type RootResolver func(target string) (string, error)

// Service turns document lifecycle events into analysis runs and hands the logs to sinks.
type Service struct {
	analyzer Analyzer
	options  config.OptionsSource
	sinks    []Sink
	resolve  RootResolver
	logger   hclog.Logger
}

func New(analyzer Analyzer, options config.OptionsSource, sinks []Sink, logger hclog.Logger) *Service {
	return &Service{
		analyzer: analyzer,
		options:  options,
		sinks:    sinks,
		resolve:  git.NewRootResolver(config.DefaultRulesFolder, ""),
		logger:   logger,
	}
}

// WithRootResolver replaces the project root discovery.
func (s *Service) WithRootResolver(r RootResolver) *Service {
	s.resolve = r
	return s
}

// OnDocumentReady analyses target when background analysis is enabled. text may be nil,
// in which case the target is read from disk. The log, if any, is published to every sink.
func (s *Service) OnDocumentReady(ctx context.Context, target string, text *string) *sarif.ResultLog {
	if !s.enabled() {
		s.logger.Debug("background analysis is disabled", "target", target)
		return nil
	}

	root, err := s.resolve(target)
	if err != nil {
		s.logger.Debug("unable to resolve project root", "target", target, "error", err)
		root = ""
	}

	log := s.analyzer.Analyze(ctx, coordinator.AnalysisRequest{
		Target:      target,
		Text:        text,
		ProjectRoot: root,
	})
	if log == nil {
		return nil
	}

	s.attachVersionControl(log, root)
	s.publish(ctx, target, log)
	return log
}

// AnalyzeProject analyses every target under root in one run and publishes the log under root.
func (s *Service) AnalyzeProject(ctx context.Context, root string, targets []string) *sarif.ResultLog {
	log := s.analyzer.AnalyzeBatch(ctx, root, targets)
	if log == nil {
		return nil
	}

	s.attachVersionControl(log, root)
	s.publish(ctx, root, log)
	return log
}

// OnDocumentClosed tells every sink to forget what it reported for target.
func (s *Service) OnDocumentClosed(target string) {
	for _, sink := range s.sinks {
		if err := sink.Drop(target); err != nil {
			s.logger.Warn("unable to drop results", "target", target, "error", err)
		}
	}
}

func (s *Service) enabled() bool {
	opts, err := s.options.Options()
	if err != nil {
		s.logger.Warn("unable to read analysis options, using the last known values", "error", err)
	}
	return opts.BackgroundAnalysisEnabled
}

func (s *Service) attachVersionControl(log *sarif.ResultLog, root string) {
	if root == "" {
		return
	}
	co, err := git.InspectCheckout(root)
	if err != nil {
		s.logger.Debug("no version control details", "root", root, "error", err)
	}
	sarif.WithVersionControl(log, co)
}

func (s *Service) publish(ctx context.Context, target string, log *sarif.ResultLog) {
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, target, log); err != nil {
			s.logger.Warn("unable to publish results", "target", target, "error", err)
		}
	}
}
