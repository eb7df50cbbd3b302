package sarif

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/sarifer/internal/findings"
)

// ToolIdentity names the tool in the driver section of the log.
type ToolIdentity struct {
	Name            string
	Version         string
	SemanticVersion string
	InformationURI  string
}

// DefaultTool is the identity written into every log this tool produces.
var DefaultTool = ToolIdentity{
	Name:            "Spam",
	Version:         "0.1.0",
	SemanticVersion: "0.1.0",
}

// Filter selects which finding kinds are written to the log.
// Every level is eligible; fail results are always written.
type Filter struct {
	IncludePassResults bool
}

// Allows reports whether findings of kind k pass the filter.
func (f Filter) Allows(k findings.Kind) bool {
	switch k {
	case findings.KindFail:
		return true
	case findings.KindPass:
		return f.IncludePassResults
	default:
		return false
	}
}

// RunWindow brackets the analysis: the start marker, the stop marker and whether
// the run finished without a fault.
type RunWindow struct {
	Started    time.Time
	Stopped    time.Time
	Successful bool
}

// ResultLog is one assembled SARIF log together with the findings it was built from.
type ResultLog struct {
	*sarif.Report
	Tool     ToolIdentity
	Started  time.Time
	Stopped  time.Time
	Findings []findings.Finding
}

// Build assembles a single-run SARIF log from fs. It is a pure function of its inputs:
// findings keep their input order and rules are listed in order of first use.
func Build(fs []findings.Finding, tool ToolIdentity, filter Filter, window RunWindow) (*ResultLog, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create sarif report: %w", err)
	}

	driver := sarif.NewDriver(tool.Name)
	if tool.Version != "" {
		driver.WithVersion(tool.Version)
	}
	if tool.SemanticVersion != "" {
		driver.WithSemanticVersion(tool.SemanticVersion)
	}
	if tool.InformationURI != "" {
		driver.WithInformationURI(tool.InformationURI)
	}
	driver.Rules = []*sarif.ReportingDescriptor{}
	run := sarif.NewRun(*sarif.NewTool(driver))

	kept := make([]findings.Finding, 0, len(fs))
	for _, f := range fs {
		if filter.Allows(f.Kind) {
			kept = append(kept, f)
		}
	}

	for _, f := range kept {
		rule := run.AddRule(f.RuleID)
		if rule.Name == nil {
			rule.WithName(f.RuleName).
				WithShortDescription(sarif.NewMultiformatMessageString(f.RuleName))
		}
		if f.Kind == findings.KindFail && rule.DefaultConfiguration == nil {
			rule.WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(string(f.Level)))
		}
	}

	for _, f := range kept {
		run.AddResult(newResult(f))
	}

	run.AddInvocations(sarif.NewInvocation().
		WithStartTimeUTC(window.Started).
		WithEndTimeUTC(window.Stopped).
		WithExecutionSuccess(window.Successful))

	report.AddRun(run)

	return &ResultLog{
		Report:   report,
		Tool:     tool,
		Started:  window.Started.UTC(),
		Stopped:  window.Stopped.UTC(),
		Findings: kept,
	}, nil
}

// artifactURI renders a target as a forward-slash URI whatever the host separator.
// Absolute targets become file URIs; relative ones stay relative to the source root.
func artifactURI(target string) string {
	uri := strings.ReplaceAll(filepath.ToSlash(target), "\\", "/")
	switch {
	case strings.HasPrefix(uri, "/"):
		return "file://" + uri
	case len(uri) > 2 && uri[1] == ':' && uri[2] == '/':
		return "file:///" + uri
	}
	return uri
}

func newResult(f findings.Finding) *sarif.Result {
	result := sarif.NewRuleResult(f.RuleID).
		WithKind(string(f.Kind)).
		WithLevel(string(f.Level)).
		WithMessage(sarif.NewTextMessage(f.Message))

	physical := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewSimpleArtifactLocation(artifactURI(f.Target)))
	if f.HasRegion() {
		region := sarif.NewRegion().
			WithStartLine(f.StartLine).
			WithStartColumn(f.StartColumn).
			WithEndLine(f.EndLine).
			WithEndColumn(f.EndColumn)
		if f.Snippet != "" {
			region.WithSnippet(sarif.NewArtifactContent().WithText(f.Snippet))
		}
		physical.WithRegion(region)
	}
	result.AddLocation(sarif.NewLocationWithPhysicalLocation(physical))
	return result
}

// Run returns the single run of the log.
func (l *ResultLog) Run() *sarif.Run {
	if l == nil || l.Report == nil || len(l.Runs) == 0 {
		return nil
	}
	return l.Runs[0]
}

// Bytes renders the log as indented JSON.
func (l *ResultLog) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := l.Report.PrettyWrite(&buf); err != nil {
		return nil, fmt.Errorf("failed to render sarif report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the log as indented JSON into w.
func (l *ResultLog) Write(w io.Writer) error {
	return l.Report.PrettyWrite(w)
}

// CollectSeverityInfo counts the results of the log by severity bucket.
func (l *ResultLog) CollectSeverityInfo() map[string]int {
	severityInfo := map[string]int{
		"high":   0,
		"medium": 0,
		"low":    0,
		"pass":   0,
		"total":  0,
	}

	for _, f := range l.Findings {
		switch {
		case f.Kind == findings.KindPass:
			severityInfo["pass"]++
		case f.Level == findings.LevelError:
			severityInfo["high"]++
		case f.Level == findings.LevelWarning:
			severityInfo["medium"]++
		default:
			severityInfo["low"]++
		}
		severityInfo["total"]++
	}
	return severityInfo
}
