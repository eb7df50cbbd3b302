package isolation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/sarifer/internal/rules"
	"github.com/scan-io-git/sarifer/internal/worker"
	"github.com/scan-io-git/sarifer/pkg/shared"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	serrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
)

// The test binary doubles as the worker when started with this variable set.
const workerProcessEnv = "SARIFER_TEST_WORKER_PROCESS"

func TestMain(m *testing.M) {
	if os.Getenv(workerProcessEnv) == "1" {
		worker.Serve(hclog.New(&hclog.LoggerOptions{Name: "worker", Output: os.Stderr, Level: hclog.Error}))
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func selfLauncher(t *testing.T) *ProcessLauncher {
	t.Helper()
	if testing.Short() {
		t.Skip("starts worker subprocesses")
	}

	exe, err := os.Executable()
	require.NoError(t, err)

	l, err := NewProcessLauncher(config.Isolation{WorkerPath: exe}, hclog.NewNullLogger())
	require.NoError(t, err)
	l.Args = []string{"-test.run=^$"}
	l.Env = []string{workerProcessEnv + "=1"}
	return l
}

func TestProcessSessionRoundTrip(t *testing.T) {
	s, err := New(selfLauncher(t), hclog.NewNullLogger()).Open(context.Background())
	require.NoError(t, err)

	tokens, err := Dispense[shared.TokenSource](s, shared.PluginTypeTokens)
	require.NoError(t, err)
	id, stop, err := Bridge(context.Background(), tokens, hclog.NewNullLogger())
	require.NoError(t, err)

	analyzer, err := Dispense[shared.Analyzer](s, shared.PluginTypeAnalyzer)
	require.NoError(t, err)

	resp, err := analyzer.Analyze(shared.AnalyzeRequest{
		TokenID: id,
		Targets: []shared.AnalyzeTarget{{Path: "a.txt", Text: "key = s3cr3t", HasText: true}},
		Rules:   []rules.Definition{{ID: "SECRET", ContentsRegex: "s3cr3t"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, "SECRET", resp.Findings[0].RuleID)
	assert.False(t, resp.Cancelled)
	stop()

	protocol := s.protocol
	s.Close()
	assert.True(t, s.Closed())
	assert.Error(t, protocol.Ping(), "the worker is gone once the session is closed")

	_, err = Dispense[shared.Analyzer](s, shared.PluginTypeAnalyzer)
	assert.ErrorIs(t, err, serrors.ErrSessionClosed)
}

func TestProcessLauncherUnusableWorker(t *testing.T) {
	if testing.Short() {
		t.Skip("starts worker subprocesses")
	}

	notExecutable := filepath.Join(t.TempDir(), "spam")
	require.NoError(t, os.WriteFile(notExecutable, []byte("not a binary"), 0o644))

	l, err := NewProcessLauncher(config.Isolation{WorkerPath: notExecutable}, hclog.NewNullLogger())
	require.NoError(t, err)

	s, err := New(l, hclog.NewNullLogger()).Open(context.Background())
	assert.Nil(t, s)

	var isoErr *serrors.IsolationError
	require.ErrorAs(t, err, &isoErr)
	assert.Equal(t, StageOpen, isoErr.Stage)
	assert.ErrorIs(t, err, serrors.ErrWorkerUnavailable)
}
