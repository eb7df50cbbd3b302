package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/sarifer/internal/findings"
	"github.com/scan-io-git/sarifer/internal/isolation"
	"github.com/scan-io-git/sarifer/internal/isolation/isolationtest"
	"github.com/scan-io-git/sarifer/internal/rules"
	"github.com/scan-io-git/sarifer/internal/ruleset"
	"github.com/scan-io-git/sarifer/internal/worker"
	"github.com/scan-io-git/sarifer/pkg/shared"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
)

type staticLoader struct {
	defs  []rules.Definition
	calls atomic.Int32
}

func (l *staticLoader) Load(string) ([]rules.Definition, error) {
	l.calls.Add(1)
	return l.defs, nil
}

var defaultRules = []rules.Definition{
	{ID: "SECRET", Name: "Secret", Level: "error", ContentsRegex: `s3cr3t`},
	{ID: "EVAL", Name: "Eval", Level: "warning", ContentsRegex: `eval\(`},
}

type mutableOptions struct {
	mu   sync.Mutex
	opts config.AnalysisOptions
}

func (m *mutableOptions) Options() (config.AnalysisOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts, nil
}

func (m *mutableOptions) set(o config.AnalysisOptions) {
	m.mu.Lock()
	m.opts = o
	m.mu.Unlock()
}

type fixture struct {
	coordinator *Coordinator
	launcher    *isolationtest.Launcher
	loader      *staticLoader
	options     *mutableOptions
}

func newFixture(t *testing.T, defs []rules.Definition) *fixture {
	t.Helper()
	logger := hclog.NewNullLogger()
	loader := &staticLoader{defs: defs}
	launcher := isolationtest.NewLauncher(t)
	options := &mutableOptions{opts: config.AnalysisOptions{BackgroundAnalysisEnabled: true}}

	return &fixture{
		coordinator: New(ruleset.NewCache(loader, logger), isolation.New(launcher, logger), options, logger),
		launcher:    launcher,
		loader:      loader,
		options:     options,
	}
}

func text(s string) *string { return &s }

func (f *fixture) assertTornDown(t *testing.T) {
	t.Helper()
	assert.Equal(t, f.launcher.Launches(), f.launcher.Kills(), "every session is torn down")
	assert.Equal(t, 0, f.launcher.Live())
	assert.Equal(t, 0, f.coordinator.Guard().Len(), "guard released")
	assert.Equal(t, 0, f.launcher.Tokens.Len(), "cancellation tokens released")
}

func TestAnalyzeWithoutProjectRoot(t *testing.T) {
	f := newFixture(t, defaultRules)

	log := f.coordinator.Analyze(context.Background(), AnalysisRequest{Target: "a.go", Text: text("s3cr3t")})
	assert.Nil(t, log)
	assert.Equal(t, int32(0), f.loader.calls.Load())
	assert.Equal(t, 0, f.launcher.Launches())
}

func TestAnalyzeWithEmptyRuleSet(t *testing.T) {
	f := newFixture(t, nil)

	log := f.coordinator.Analyze(context.Background(), AnalysisRequest{Target: "a.go", Text: text("s3cr3t"), ProjectRoot: t.TempDir()})
	assert.Nil(t, log)
	assert.Equal(t, int32(1), f.loader.calls.Load())
	assert.Equal(t, 0, f.launcher.Launches())
}

func TestAnalyzeProducesLog(t *testing.T) {
	f := newFixture(t, defaultRules)
	root := t.TempDir()

	log := f.coordinator.Analyze(context.Background(), AnalysisRequest{
		Target:      filepath.Join(root, "app.js"),
		Text:        text("const k = 's3cr3t'\neval(k)\n"),
		ProjectRoot: root,
	})
	require.NotNil(t, log)
	require.Len(t, log.Findings, 2)
	assert.Equal(t, "SECRET", log.Findings[0].RuleID)
	assert.Equal(t, findings.LevelWarning, log.Findings[1].Level)
	assert.True(t, *log.Run().Invocations[0].ExecutionSuccessful)
	assert.Equal(t, 1, f.launcher.Launches())
	f.assertTornDown(t)

	// the rule set is compiled once per root
	f.coordinator.Analyze(context.Background(), AnalysisRequest{Target: filepath.Join(root, "b.js"), Text: text("x"), ProjectRoot: root})
	assert.Equal(t, int32(1), f.loader.calls.Load())
	assert.Equal(t, 2, f.launcher.Launches(), "sessions are never reused")
}

func TestAnalyzeReadsTargetFromDisk(t *testing.T) {
	f := newFixture(t, defaultRules)
	root := t.TempDir()
	target := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(target, []byte("s3cr3t"), 0o644))

	log := f.coordinator.Analyze(context.Background(), AnalysisRequest{Target: target, ProjectRoot: root})
	require.NotNil(t, log)
	assert.Len(t, log.Findings, 1)
}

func TestAnalyzeSingleFlight(t *testing.T) {
	f := newFixture(t, defaultRules)
	entered := make(chan struct{})
	proceed := make(chan struct{})
	f.launcher.Analyzer = func(w *worker.Worker) shared.Analyzer {
		return isolationtest.AnalyzerFunc(func(req shared.AnalyzeRequest) (shared.AnalyzeResponse, error) {
			close(entered)
			<-proceed
			return w.Analyze(req)
		})
	}

	root := t.TempDir()
	req := AnalysisRequest{Target: filepath.Join(root, "a.go"), Text: text("s3cr3t"), ProjectRoot: root}

	done := make(chan bool)
	go func() {
		done <- f.coordinator.Analyze(context.Background(), req) != nil
	}()

	<-entered
	assert.True(t, f.coordinator.Guard().Active(filepath.Clean(req.Target)))
	assert.Nil(t, f.coordinator.Analyze(context.Background(), req), "second request is dropped")
	assert.Equal(t, 1, f.launcher.Launches(), "dropped request never opens a session")

	close(proceed)
	assert.True(t, <-done)
	f.assertTornDown(t)
}

func TestAnalyzeCancelledBeforeStart(t *testing.T) {
	f := newFixture(t, defaultRules)
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := f.coordinator.Analyze(ctx, AnalysisRequest{Target: filepath.Join(root, "a.go"), Text: text("s3cr3t"), ProjectRoot: root})
	require.NotNil(t, log)
	assert.Empty(t, log.Findings)
	assert.Empty(t, log.Run().Results)
	require.Len(t, log.Run().Invocations, 1)
	assert.NotNil(t, log.Run().Invocations[0].StartTimeUTC)
	assert.NotNil(t, log.Run().Invocations[0].EndTimeUTC)
	f.assertTornDown(t)
}

func TestAnalyzeCancelledWhileRunning(t *testing.T) {
	f := newFixture(t, defaultRules)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.launcher.Analyzer = func(w *worker.Worker) shared.Analyzer {
		return isolationtest.AnalyzerFunc(func(req shared.AnalyzeRequest) (shared.AnalyzeResponse, error) {
			remote, err := f.launcher.Tokens.Context(req.TokenID)
			if err != nil {
				return shared.AnalyzeResponse{}, err
			}
			cancel()
			select {
			case <-remote.Done():
			case <-time.After(5 * time.Second):
				return shared.AnalyzeResponse{}, errors.New("cancellation never reached the worker")
			}
			return w.Analyze(req)
		})
	}

	root := t.TempDir()
	log := f.coordinator.Analyze(ctx, AnalysisRequest{Target: filepath.Join(root, "a.go"), Text: text("s3cr3t"), ProjectRoot: root})
	require.NotNil(t, log, "cancellation yields a log, not a failure")
	assert.Empty(t, log.Findings)
	f.assertTornDown(t)
}

func TestAnalyzeTearsDownOnWorkerFault(t *testing.T) {
	f := newFixture(t, defaultRules)
	f.launcher.Analyzer = func(*worker.Worker) shared.Analyzer {
		return isolationtest.AnalyzerFunc(func(shared.AnalyzeRequest) (shared.AnalyzeResponse, error) {
			return shared.AnalyzeResponse{}, errors.New("rule engine exploded")
		})
	}

	root := t.TempDir()
	log := f.coordinator.Analyze(context.Background(), AnalysisRequest{Target: filepath.Join(root, "a.go"), Text: text("s3cr3t"), ProjectRoot: root})
	assert.Nil(t, log)
	assert.Equal(t, 1, f.launcher.Launches())
	f.assertTornDown(t)
}

type panickingOpener struct{}

func (panickingOpener) Open(context.Context) (*isolation.Session, error) {
	panic("boundary exploded")
}

func TestAnalyzeReleasesGuardOnPanic(t *testing.T) {
	logger := hclog.NewNullLogger()
	c := New(ruleset.NewCache(&staticLoader{defs: defaultRules}, logger), panickingOpener{}, config.StaticOptions{}, logger)

	root := t.TempDir()
	req := AnalysisRequest{Target: filepath.Join(root, "a.go"), Text: text("s3cr3t"), ProjectRoot: root}
	assert.Nil(t, c.Analyze(context.Background(), req))
	assert.Equal(t, 0, c.Guard().Len())
}

func TestAnalyzeIsolationFailure(t *testing.T) {
	f := newFixture(t, defaultRules)
	f.launcher.LaunchErr = errors.New("worker binary missing")

	root := t.TempDir()
	log := f.coordinator.Analyze(context.Background(), AnalysisRequest{Target: filepath.Join(root, "a.go"), Text: text("s3cr3t"), ProjectRoot: root})
	assert.Nil(t, log)
	assert.Equal(t, 0, f.coordinator.Guard().Len())
}

func TestAnalyzeOptionsAreReadPerRequest(t *testing.T) {
	f := newFixture(t, defaultRules)
	root := t.TempDir()
	req := AnalysisRequest{Target: filepath.Join(root, "clean.go"), Text: text("package main"), ProjectRoot: root}

	log := f.coordinator.Analyze(context.Background(), req)
	require.NotNil(t, log)
	assert.Empty(t, log.Findings)

	f.options.set(config.AnalysisOptions{IncludePassResults: true})
	log = f.coordinator.Analyze(context.Background(), req)
	require.NotNil(t, log)
	require.Len(t, log.Findings, 2)
	assert.Equal(t, findings.KindPass, log.Findings[0].Kind)

	sarifReq := AnalysisRequest{Target: filepath.Join(root, "prior.sarif"), Text: text("s3cr3t"), ProjectRoot: root}
	f.options.set(config.AnalysisOptions{})
	log = f.coordinator.Analyze(context.Background(), sarifReq)
	require.NotNil(t, log)
	assert.Empty(t, log.Findings, "sarif artifacts are skipped by default")

	f.options.set(config.AnalysisOptions{AnalyzeSarifArtifacts: true})
	log = f.coordinator.Analyze(context.Background(), sarifReq)
	require.NotNil(t, log)
	assert.Len(t, log.Findings, 1)
}

func TestAnalyzeBatch(t *testing.T) {
	f := newFixture(t, defaultRules)
	root := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}
	write("a.js", "s3cr3t")
	write("previous.sarif", "s3cr3t")
	write("b.js", "eval(x) s3cr3t")

	log := f.coordinator.AnalyzeBatch(context.Background(), root, []string{"a.js", "previous.sarif", "../escape.js", filepath.Join(root, "b.js")})
	require.NotNil(t, log)
	require.Len(t, log.Findings, 3)
	assert.Equal(t, filepath.Join(root, "a.js"), log.Findings[0].Target)
	assert.Equal(t, filepath.Join(root, "b.js"), log.Findings[2].Target)
	assert.Equal(t, 1, f.launcher.Launches(), "one session for the whole batch")
	f.assertTornDown(t)
}

func TestAnalyzeBatchWithoutTargets(t *testing.T) {
	f := newFixture(t, defaultRules)
	root := t.TempDir()

	assert.Nil(t, f.coordinator.AnalyzeBatch(context.Background(), root, nil))
	assert.Nil(t, f.coordinator.AnalyzeBatch(context.Background(), root, []string{}))
	assert.Equal(t, int32(0), f.loader.calls.Load(), "rules are not loaded")
	assert.Equal(t, 0, f.launcher.Launches())
	assert.Equal(t, 0, f.coordinator.Guard().Len())
}

func TestAnalyzeBatchSingleFlightIsPerRoot(t *testing.T) {
	f := newFixture(t, defaultRules)
	root := t.TempDir()

	release, ok := f.coordinator.Guard().TryAcquire(batchKeyPrefix + filepath.Clean(root))
	require.True(t, ok)
	assert.Nil(t, f.coordinator.AnalyzeBatch(context.Background(), root, []string{"a.js"}))
	release()

	assert.Nil(t, f.coordinator.AnalyzeBatch(context.Background(), "", []string{"a.js"}))
	log := f.coordinator.AnalyzeBatch(context.Background(), root, []string{"../outside.js"})
	require.NotNil(t, log)
	assert.Empty(t, log.Findings)
	assert.Equal(t, 0, f.launcher.Launches())
}
