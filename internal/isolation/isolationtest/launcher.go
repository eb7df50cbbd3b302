// Package isolationtest provides an in-process isolation.Launcher for tests. Sessions talk
// to a real worker over go-plugin's net/rpc transport without starting a subprocess.
package isolationtest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/scan-io-git/sarifer/internal/worker"
	"github.com/scan-io-git/sarifer/pkg/shared"
)

// AnalyzerFunc adapts a function to shared.Analyzer.
type AnalyzerFunc func(req shared.AnalyzeRequest) (shared.AnalyzeResponse, error)

func (f AnalyzerFunc) Analyze(req shared.AnalyzeRequest) (shared.AnalyzeResponse, error) {
	return f(req)
}

type Launcher struct {
	T      testing.TB
	Tokens *worker.Tokens

	// Analyzer replaces the real worker when set. It receives the worker so it can delegate.
	Analyzer func(w *worker.Worker) shared.Analyzer
	// LaunchErr makes every launch fail.
	LaunchErr error

	launches atomic.Int32
	kills    atomic.Int32
	live     atomic.Int32
}

func NewLauncher(t testing.TB) *Launcher {
	return &Launcher{
		T:      t,
		Tokens: worker.NewTokens(hclog.NewNullLogger()),
	}
}

func (l *Launcher) Launch(ctx context.Context, id string) (plugin.ClientProtocol, func(), error) {
	l.launches.Add(1)
	if l.LaunchErr != nil {
		return nil, nil, l.LaunchErr
	}

	w := worker.New(hclog.NewNullLogger(), l.Tokens)
	var analyzer shared.Analyzer = w
	if l.Analyzer != nil {
		analyzer = l.Analyzer(w)
	}

	client, _ := plugin.TestPluginRPCConn(l.T, shared.ServerPlugins(analyzer, l.Tokens), nil)
	l.live.Add(1)

	var once sync.Once
	kill := func() {
		once.Do(func() {
			client.Close()
			l.kills.Add(1)
			l.live.Add(-1)
		})
	}
	return client, kill, nil
}

// Launches returns how many sessions were requested.
func (l *Launcher) Launches() int { return int(l.launches.Load()) }

// Kills returns how many sessions were torn down.
func (l *Launcher) Kills() int { return int(l.kills.Load()) }

// Live returns how many launched sessions have not been torn down yet.
func (l *Launcher) Live() int { return int(l.live.Load()) }
