package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/internal/findings"
	"github.com/scan-io-git/sarifer/internal/rules"
)

// SarifExtension is the extension of the logs this tool produces. Targets carrying it are
// skipped by default so a result log is never analysed as if it were source.
const SarifExtension = ".sarif"

// State is the lifecycle stage of one target.
type State int

const (
	StateCreated State = iota
	StateApplicabilityFiltered
	StateExecuting
	StateCompleted
	StateCancelled
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateApplicabilityFiltered:
		return "applicability_filtered"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFaulted
}

// Target is one document to analyse. When HasText is false the text is read from Path.
type Target struct {
	Path    string
	Text    string
	HasText bool
}

// Options controls a pipeline run.
type Options struct {
	AnalyzeSarifArtifacts bool
	Logger                hclog.Logger
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

// Result is the outcome of running the pipeline on one target.
type Result struct {
	Target     string
	State      State
	Skipped    bool
	Findings   []findings.Finding
	Disabled   []string
	Applicable int
	Duration   time.Duration
	Err        error
}

// IsSarifArtifact reports whether target looks like a SARIF log.
func IsSarifArtifact(target string) bool {
	return strings.EqualFold(filepath.Ext(target), SarifExtension)
}

type matcher interface {
	RuleID() string
	AppliesTo(target string) bool
	Match(target, text string, idx *rules.LineIndex) []findings.Finding
}

// Run filters rs down to the rules applicable to t and executes them in order.
// ctx is checked on entry, after filtering, and before every rule; findings
// produced before a cancellation or a rule fault are kept.
func Run(ctx context.Context, t Target, rs []*rules.Rule, opts Options) Result {
	ms := make([]matcher, len(rs))
	for i, r := range rs {
		ms[i] = r
	}
	return run(ctx, t, ms, opts)
}

func run(ctx context.Context, t Target, rs []matcher, opts Options) (res Result) {
	started := time.Now()
	logger := opts.logger()

	res = Result{Target: t.Path, State: StateCreated}
	defer func() {
		res.Duration = time.Since(started)
		logger.Debug("target analysed", "target", t.Path, "state", res.State, "findings", len(res.Findings), "duration", res.Duration)
	}()

	if ctx.Err() != nil {
		res.State = StateCancelled
		return res
	}

	if IsSarifArtifact(t.Path) && !opts.AnalyzeSarifArtifacts {
		res.State = StateCompleted
		res.Skipped = true
		return res
	}

	applicable := make([]matcher, 0, len(rs))
	for _, r := range rs {
		if r.AppliesTo(t.Path) {
			applicable = append(applicable, r)
		} else {
			res.Disabled = append(res.Disabled, r.RuleID())
		}
	}
	res.Applicable = len(applicable)
	res.State = StateApplicabilityFiltered
	logger.Debug("applicability filter done", "target", t.Path, "applicable", res.Applicable, "disabled", len(res.Disabled))

	if ctx.Err() != nil {
		res.State = StateCancelled
		return res
	}

	res.State = StateExecuting
	idx := rules.NewLineIndex(t.Text)
	for _, r := range applicable {
		if ctx.Err() != nil {
			res.State = StateCancelled
			return res
		}
		found, err := matchRule(r, t, idx)
		res.Findings = append(res.Findings, found...)
		if err != nil {
			res.State = StateFaulted
			res.Err = err
			return res
		}
	}

	res.State = StateCompleted
	return res
}

func matchRule(r matcher, t Target, idx *rules.LineIndex) (found []findings.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rule %q panicked on %q: %v", r.RuleID(), t.Path, rec)
		}
	}()
	return r.Match(t.Path, t.Text, idx), nil
}
