package shared

import (
	"net/rpc"
	"time"

	"github.com/hashicorp/go-plugin"

	"github.com/scan-io-git/sarifer/internal/findings"
	"github.com/scan-io-git/sarifer/internal/rules"
)

type Analyzer interface {
	Analyze(req AnalyzeRequest) (AnalyzeResponse, error)
}

// AnalyzeTarget is one document sent to the worker. Text is read by the worker from Path
// when HasText is false.
type AnalyzeTarget struct {
	Path    string
	Text    string
	HasText bool
}

// AnalyzeOptions are the per-request options the worker pipeline honours.
type AnalyzeOptions struct {
	AnalyzeSarifArtifacts bool
}

// AnalyzeRequest represents a single analysis pass inside the worker.
type AnalyzeRequest struct {
	TokenID string             // Cancellation token issued by the tokens plugin, optional
	Targets []AnalyzeTarget    // Targets analysed sequentially in this order
	Rules   []rules.Definition // Rule definitions compiled by the worker
	Options AnalyzeOptions     // Pipeline options
}

// TargetReport summarises the pipeline run of one target.
type TargetReport struct {
	Target     string
	State      string
	Skipped    bool
	Applicable int
	Disabled   []string
	Duration   time.Duration
	Error      string
}

type AnalyzeResponse struct {
	Findings  []findings.Finding
	Reports   []TargetReport
	Started   time.Time
	Stopped   time.Time
	Cancelled bool
}

// Faulted reports whether any target ended in a fault.
func (r AnalyzeResponse) Faulted() bool {
	for _, rep := range r.Reports {
		if rep.Error != "" {
			return true
		}
	}
	return false
}

type AnalyzerRPCClient struct{ client *rpc.Client }

func (g *AnalyzerRPCClient) Analyze(req AnalyzeRequest) (AnalyzeResponse, error) {
	var resp AnalyzeResponse

	err := g.client.Call("Plugin.Analyze", req, &resp)
	if err != nil {
		return resp, err
	}

	return resp, nil
}

type AnalyzerRPCServer struct {
	Impl Analyzer
}

func (s *AnalyzerRPCServer) Analyze(args AnalyzeRequest, resp *AnalyzeResponse) error {
	var err error
	*resp, err = s.Impl.Analyze(args)
	return err
}

type AnalyzerPlugin struct {
	Impl Analyzer
}

func (p *AnalyzerPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &AnalyzerRPCServer{Impl: p.Impl}, nil
}

func (AnalyzerPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &AnalyzerRPCClient{client: c}, nil
}
