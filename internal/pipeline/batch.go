package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/scan-io-git/sarifer/internal/findings"
	"github.com/scan-io-git/sarifer/internal/rules"
)

// ReadFunc returns the text of a target that arrived without one.
type ReadFunc func(path string) (string, error)

// ReadFile reads target text from disk.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read target %q: %w", path, err)
	}
	return string(data), nil
}

// BatchResult collects the per-target results of a batch, in input order.
type BatchResult struct {
	Results   []Result
	Cancelled bool
}

// Findings returns every finding of the batch in target order.
func (b BatchResult) Findings() []findings.Finding {
	var out []findings.Finding
	for _, r := range b.Results {
		out = append(out, r.Findings...)
	}
	return out
}

// RunBatch runs the pipeline over targets one after the other. A target that is skipped
// or cannot be read does not stop the batch; cancellation does, keeping what was found.
func RunBatch(ctx context.Context, targets []Target, rs []*rules.Rule, opts Options, read ReadFunc) BatchResult {
	if read == nil {
		read = ReadFile
	}
	logger := opts.logger()

	var out BatchResult
	for _, t := range targets {
		if ctx.Err() != nil {
			out.Cancelled = true
			break
		}

		if IsSarifArtifact(t.Path) && !opts.AnalyzeSarifArtifacts {
			logger.Debug("skipping sarif artifact", "target", t.Path)
			out.Results = append(out.Results, Result{Target: t.Path, State: StateCompleted, Skipped: true})
			continue
		}

		if !t.HasText {
			text, err := read(t.Path)
			if err != nil {
				logger.Warn("unable to read target", "target", t.Path, "error", err)
				out.Results = append(out.Results, Result{Target: t.Path, State: StateFaulted, Err: err})
				continue
			}
			t.Text, t.HasText = text, true
		}

		res := Run(ctx, t, rs, opts)
		out.Results = append(out.Results, res)
		if res.State == StateCancelled {
			out.Cancelled = true
			break
		}
	}
	return out
}
