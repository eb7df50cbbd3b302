package isolation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/scan-io-git/sarifer/pkg/shared"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	serrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
)

// Launcher starts one isolated worker and returns the protocol to talk to it together
// with a func that kills whatever the launch started.
type Launcher interface {
	Launch(ctx context.Context, id string) (plugin.ClientProtocol, func(), error)
}

// ProcessLauncher runs the worker as a go-plugin subprocess. The kill func it returns
// closes the connection itself, so callers must not close the protocol first.
type ProcessLauncher struct {
	Path         string
	Args         []string
	Env          []string // added to the host environment
	StartTimeout time.Duration
	Logger       hclog.Logger
}

// NewProcessLauncher resolves the worker binary. Without an explicit worker_path the host
// re-executes itself with the hidden worker command, so both sides always share one engine build.
func NewProcessLauncher(cfg config.Isolation, logger hclog.Logger) (*ProcessLauncher, error) {
	l := &ProcessLauncher{
		Path:         cfg.WorkerPath,
		StartTimeout: config.SetThen(cfg.StartTimeout, config.DefaultStartTimeout),
		Logger:       logger,
	}

	if l.Path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve the worker executable: %w", err)
		}
		l.Path = exe
		l.Args = []string{shared.WorkerCommand}
	}

	if _, err := os.Stat(l.Path); err != nil {
		return nil, fmt.Errorf("worker executable %q is not available: %w", l.Path, err)
	}
	return l, nil
}

func (l *ProcessLauncher) Launch(ctx context.Context, id string) (plugin.ClientProtocol, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	cmd := exec.Command(l.Path, l.Args...)
	cmd.Env = append(cmd.Env, l.Env...)

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  shared.HandshakeConfig,
		Plugins:          shared.PluginMap,
		Cmd:              cmd,
		Logger:           l.Logger.With("session", id),
		StartTimeout:     l.StartTimeout,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to start worker %q: %w: %w", l.Path, serrors.ErrWorkerUnavailable, err)
	}

	return rpcClient, client.Kill, nil
}
