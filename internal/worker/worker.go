package worker

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/scan-io-git/sarifer/internal/pipeline"
	"github.com/scan-io-git/sarifer/internal/rules"
	"github.com/scan-io-git/sarifer/pkg/shared"
)

// Metadata of the worker build
var (
	Version       = "unknown"
	GolangVersion = "unknown"
	BuildTime     = "unknown"
)

// Worker runs the analysis pipeline inside the isolated process. It implements shared.Analyzer.
type Worker struct {
	logger hclog.Logger
	tokens *Tokens
	read   pipeline.ReadFunc
}

// New creates a worker whose analyses observe cancellations issued through tokens.
func New(logger hclog.Logger, tokens *Tokens) *Worker {
	return &Worker{
		logger: logger,
		tokens: tokens,
		read:   pipeline.ReadFile,
	}
}

// Analyze compiles the request's rules and runs the pipeline over every target in order.
// A panic anywhere in the pass is returned as an error instead of taking the process down.
func (w *Worker) Analyze(req shared.AnalyzeRequest) (resp shared.AnalyzeResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("analysis panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("analysis panicked: %v", r)
		}
	}()

	if err := validateAnalyze(&req); err != nil {
		w.logger.Error("validation failed for analyze operation", "error", err)
		return resp, err
	}

	ctx, err := w.tokens.Context(req.TokenID)
	if err != nil {
		return resp, err
	}

	rs, err := rules.Compile(req.Rules)
	if err != nil {
		return resp, fmt.Errorf("failed to compile rules: %w", err)
	}

	targets := make([]pipeline.Target, 0, len(req.Targets))
	for _, t := range req.Targets {
		targets = append(targets, pipeline.Target{Path: t.Path, Text: t.Text, HasText: t.HasText})
	}

	w.logger.Debug("analysis starting", "targets", len(targets), "rules", len(rs))
	resp.Started = time.Now().UTC()
	batch := pipeline.RunBatch(ctx, targets, rs, pipeline.Options{
		AnalyzeSarifArtifacts: req.Options.AnalyzeSarifArtifacts,
		Logger:                w.logger,
	}, w.read)
	resp.Stopped = time.Now().UTC()

	resp.Findings = batch.Findings()
	resp.Cancelled = batch.Cancelled
	resp.Reports = make([]shared.TargetReport, 0, len(batch.Results))
	for _, r := range batch.Results {
		rep := shared.TargetReport{
			Target:     r.Target,
			State:      r.State.String(),
			Skipped:    r.Skipped,
			Applicable: r.Applicable,
			Disabled:   r.Disabled,
			Duration:   r.Duration,
		}
		if r.Err != nil {
			rep.Error = r.Err.Error()
		}
		resp.Reports = append(resp.Reports, rep)
	}

	w.logger.Debug("analysis finished", "findings", len(resp.Findings), "cancelled", resp.Cancelled)
	return resp, nil
}

// Serve blocks serving the analyzer and token plugins to the host over go-plugin.
func Serve(logger hclog.Logger) {
	tokens := NewTokens(logger)
	logger.Debug("worker starting", "version", Version, "go_version", GolangVersion, "build_time", BuildTime)

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.HandshakeConfig,
		Plugins:         shared.ServerPlugins(New(logger, tokens), tokens),
		Logger:          logger,
	})
}
