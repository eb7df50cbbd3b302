package isolation

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	serrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
)

const (
	StageOpen     = "open"
	StageDispense = "dispense"
	StageBridge   = "bridge"
	StageInvoke   = "invoke"
)

// Boundary opens isolated worker sessions. It keeps no per-session state, so any number
// of sessions may be opened concurrently.
type Boundary struct {
	launcher Launcher
	logger   hclog.Logger
}

func New(launcher Launcher, logger hclog.Logger) *Boundary {
	return &Boundary{launcher: launcher, logger: logger}
}

// Open starts a new worker and checks it answers. Anything started is torn down
// again when Open fails.
func (b *Boundary) Open(ctx context.Context) (*Session, error) {
	id := uuid.New().String()

	protocol, kill, err := b.launcher.Launch(ctx, id)
	if err != nil {
		if kill != nil {
			kill()
		}
		return nil, serrors.NewIsolationError(StageOpen, err)
	}

	s := &Session{
		ID:       id,
		protocol: protocol,
		kill:     kill,
		logger:   b.logger.With("session", id),
	}
	if err := protocol.Ping(); err != nil {
		s.Close()
		return nil, serrors.NewIsolationError(StageOpen, fmt.Errorf("worker did not answer: %w", err))
	}

	s.logger.Debug("isolation session opened")
	return s, nil
}

// Session is one isolated worker. Every proxy dispensed from it becomes unusable once
// the session is closed.
type Session struct {
	ID string

	protocol plugin.ClientProtocol
	kill     func()
	logger   hclog.Logger

	once   sync.Once
	closed atomic.Bool
}

// Dispense creates a proxy of capability T living inside the session's worker.
func Dispense[T any](s *Session, kind string) (T, error) {
	var zero T
	if s == nil || s.closed.Load() || s.protocol == nil {
		return zero, serrors.NewIsolationError(StageDispense, serrors.ErrSessionClosed)
	}

	raw, err := s.protocol.Dispense(kind)
	if err != nil {
		return zero, serrors.NewIsolationError(StageDispense, fmt.Errorf("plugin %q: %w", kind, err))
	}

	v, ok := raw.(T)
	if !ok {
		want := reflect.TypeOf((*T)(nil)).Elem()
		return zero, serrors.NewIsolationError(StageDispense, fmt.Errorf("plugin %q is %T, not %s", kind, raw, want))
	}
	return v, nil
}

// Close tears the worker down. It is safe to call more than once and on a
// partially opened session.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.closed.Store(true)
		switch {
		case s.kill != nil:
			// kill asks the worker to quit over the connection before closing it.
			s.kill()
		case s.protocol != nil:
			if err := s.protocol.Close(); err != nil && s.logger != nil {
				s.logger.Debug("worker connection closed with error", "error", err)
			}
		}
		if s.logger != nil {
			s.logger.Debug("isolation session closed")
		}
	})
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s == nil || s.closed.Load()
}
