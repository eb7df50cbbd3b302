package worker

import (
	"fmt"

	"github.com/scan-io-git/sarifer/pkg/shared"
)

// validateAnalyze checks the necessary fields in AnalyzeRequest.
func validateAnalyze(req *shared.AnalyzeRequest) error {
	if len(req.Targets) == 0 {
		return fmt.Errorf("no targets to analyse")
	}
	for i, t := range req.Targets {
		if t.Path == "" {
			return fmt.Errorf("target %d has no path", i)
		}
	}
	if len(req.Rules) == 0 {
		return fmt.Errorf("no rules to run")
	}
	return nil
}
