package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/internal/isolation"
	"github.com/scan-io-git/sarifer/internal/ruleset"
	"github.com/scan-io-git/sarifer/internal/sarif"
	"github.com/scan-io-git/sarifer/internal/telemetry"
	"github.com/scan-io-git/sarifer/pkg/shared"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	serrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
	"github.com/scan-io-git/sarifer/pkg/shared/files"
)

const batchKeyPrefix = "batch:"

// AnalysisRequest is one scan of one target. A nil Text means the worker reads the
// target from disk.
type AnalysisRequest struct {
	Target      string
	Text        *string
	ProjectRoot string
}

type RuleSetProvider interface {
	GetOrLoad(root string) *ruleset.RuleSet
}

type Opener interface {
	Open(ctx context.Context) (*isolation.Session, error)
}

// Coordinator is the entry point of background analysis. It resolves the rule set,
// enforces one run per target and drives a fresh isolated worker for every run.
type Coordinator struct {
	cache    RuleSetProvider
	boundary Opener
	options  config.OptionsSource
	guard    *Guard
	tool     sarif.ToolIdentity
	logger   hclog.Logger
}

func New(cache RuleSetProvider, boundary Opener, options config.OptionsSource, logger hclog.Logger) *Coordinator {
	return &Coordinator{
		cache:    cache,
		boundary: boundary,
		options:  options,
		guard:    NewGuard(),
		tool:     sarif.DefaultTool,
		logger:   logger,
	}
}

// Guard exposes the single-flight guard.
func (c *Coordinator) Guard() *Guard {
	return c.guard
}

// Analyze runs the rule set of req.ProjectRoot against one target. It returns nil when
// there is nothing to do, when another run for the same target is in flight, and when
// the isolated worker fails; a nil result means "no answer", not "no findings".
func (c *Coordinator) Analyze(ctx context.Context, req AnalysisRequest) *sarif.ResultLog {
	ctx, span := telemetry.StartAnalyzeSpan(ctx, req.Target, req.ProjectRoot)
	outcome, log, err := c.analyze(ctx, req)
	telemetry.RecordRun(outcome)
	telemetry.EndSpan(span, outcome, countFindings(log), err)
	return log
}

func (c *Coordinator) analyze(ctx context.Context, req AnalysisRequest) (string, *sarif.ResultLog, error) {
	if req.ProjectRoot == "" {
		c.logger.Debug("no project root, skipping analysis", "target", req.Target)
		return telemetry.OutcomeNoRoot, nil, nil
	}

	rs := c.cache.GetOrLoad(req.ProjectRoot)
	if rs.Empty() {
		c.logger.Debug("no rules for project root, skipping analysis", "target", req.Target, "root", req.ProjectRoot)
		return telemetry.OutcomeNoRules, nil, nil
	}

	release, ok := c.guard.TryAcquire(filepath.Clean(req.Target))
	if !ok {
		c.logger.Debug("analysis already running, dropping request", "target", req.Target)
		return telemetry.OutcomeDropped, nil, nil
	}
	defer release()

	target := shared.AnalyzeTarget{Path: req.Target}
	if req.Text != nil {
		target.Text, target.HasText = *req.Text, true
	}
	return c.execute(ctx, rs, []shared.AnalyzeTarget{target})
}

// AnalyzeBatch runs the rule set of root against targets in one isolated worker. Targets
// are analysed in order until ctx is cancelled; the log holds what was found until then.
func (c *Coordinator) AnalyzeBatch(ctx context.Context, root string, targets []string) *sarif.ResultLog {
	ctx, span := telemetry.StartBatchSpan(ctx, root, len(targets))
	outcome, log, err := c.analyzeBatch(ctx, root, targets)
	telemetry.RecordRun(outcome)
	telemetry.EndSpan(span, outcome, countFindings(log), err)
	return log
}

func (c *Coordinator) analyzeBatch(ctx context.Context, root string, targets []string) (string, *sarif.ResultLog, error) {
	if root == "" {
		c.logger.Debug("no project root, skipping batch analysis")
		return telemetry.OutcomeNoRoot, nil, nil
	}
	if len(targets) == 0 {
		c.logger.Debug("nothing to analyse", "root", root)
		return telemetry.OutcomeNoTargets, nil, nil
	}

	rs := c.cache.GetOrLoad(root)
	if rs.Empty() {
		c.logger.Debug("no rules for project root, skipping batch analysis", "root", root)
		return telemetry.OutcomeNoRules, nil, nil
	}

	release, ok := c.guard.TryAcquire(batchKeyPrefix + filepath.Clean(root))
	if !ok {
		c.logger.Debug("batch analysis already running, dropping request", "root", root)
		return telemetry.OutcomeDropped, nil, nil
	}
	defer release()

	list := make([]shared.AnalyzeTarget, 0, len(targets))
	for _, t := range targets {
		path, err := files.EnsureWithinRoot(root, t)
		if err != nil {
			c.logger.Warn("skipping target outside of the project root", "target", t, "error", err)
			continue
		}
		list = append(list, shared.AnalyzeTarget{Path: path})
	}
	if len(list) == 0 {
		return c.emptyLog(telemetry.OutcomeCompleted)
	}
	return c.execute(ctx, rs, list)
}

// execute drives one isolated worker. The session is torn down before execute returns,
// whatever the exit path.
func (c *Coordinator) execute(ctx context.Context, rs *ruleset.RuleSet, targets []shared.AnalyzeTarget) (outcome string, log *sarif.ResultLog, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
			c.logger.Error("analysis failed", "error", err)
			outcome, log = telemetry.OutcomeIsolation, nil
		}
	}()

	if ctx.Err() != nil {
		c.logger.Debug("analysis cancelled before start")
		return c.emptyLog(telemetry.OutcomeCancelled)
	}

	opts, err := c.options.Options()
	if err != nil {
		c.logger.Warn("unable to read analysis options, using the last known values", "error", err)
	}

	session, err := c.boundary.Open(ctx)
	if err != nil {
		c.logger.Error("unable to open isolation session", "error", err)
		return telemetry.OutcomeIsolation, nil, err
	}
	defer session.Close()

	analyzer, err := isolation.Dispense[shared.Analyzer](session, shared.PluginTypeAnalyzer)
	if err != nil {
		c.logger.Error("unable to reach the analyzer", "session", session.ID, "error", err)
		return telemetry.OutcomeIsolation, nil, err
	}
	tokens, err := isolation.Dispense[shared.TokenSource](session, shared.PluginTypeTokens)
	if err != nil {
		c.logger.Error("unable to reach the token source", "session", session.ID, "error", err)
		return telemetry.OutcomeIsolation, nil, err
	}

	tokenID, stop, err := isolation.Bridge(ctx, tokens, c.logger)
	if err != nil {
		c.logger.Error("unable to bridge cancellation", "session", session.ID, "error", err)
		return telemetry.OutcomeIsolation, nil, err
	}
	defer stop()

	resp, err := analyzer.Analyze(shared.AnalyzeRequest{
		TokenID: tokenID,
		Targets: targets,
		Rules:   rs.Definitions,
		Options: shared.AnalyzeOptions{AnalyzeSarifArtifacts: opts.AnalyzeSarifArtifacts},
	})
	if err != nil {
		err = serrors.NewIsolationError(isolation.StageInvoke, err)
		c.logger.Error("analysis failed inside the worker", "session", session.ID, "error", err)
		return telemetry.OutcomeIsolation, nil, err
	}

	for _, rep := range resp.Reports {
		telemetry.RecordApplicable(rep.Applicable)
		telemetry.RecordTarget(rep.State, rep.Duration)
		c.logger.Debug("target analysed",
			"target", rep.Target,
			"state", rep.State,
			"applicable", rep.Applicable,
			"disabled", len(rep.Disabled),
			"duration", rep.Duration,
		)
		if rep.Error != "" {
			c.logger.Warn("target analysis faulted", "target", rep.Target, "error", rep.Error)
		}
	}

	log, err = sarif.Build(resp.Findings, c.tool, sarif.Filter{IncludePassResults: opts.IncludePassResults}, sarif.RunWindow{
		Started:    resp.Started,
		Stopped:    resp.Stopped,
		Successful: !resp.Faulted(),
	})
	if err != nil {
		c.logger.Error("unable to assemble the result log", "error", err)
		return telemetry.OutcomeAssembling, nil, err
	}

	outcome = telemetry.OutcomeCompleted
	if resp.Cancelled {
		outcome = telemetry.OutcomeCancelled
	}
	c.logger.Info("analysis finished",
		"session", session.ID,
		"targets", len(targets),
		"rules", len(rs.Rules),
		"findings", len(log.Findings),
		"outcome", outcome,
	)
	return outcome, log, nil
}

// emptyLog builds the bracketed log of a run that produced nothing.
func (c *Coordinator) emptyLog(outcome string) (string, *sarif.ResultLog, error) {
	now := time.Now().UTC()
	log, err := sarif.Build(nil, c.tool, sarif.Filter{}, sarif.RunWindow{Started: now, Stopped: now, Successful: true})
	if err != nil {
		return telemetry.OutcomeAssembling, nil, err
	}
	return outcome, log, nil
}

func countFindings(log *sarif.ResultLog) int {
	if log == nil {
		return 0
	}
	return len(log.Findings)
}
