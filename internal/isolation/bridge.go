package isolation

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/pkg/shared"
	serrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
)

// Bridge relays the cancellation of ctx into the worker. It issues a token in the worker
// and calls its Cancel as soon as ctx is done; an already cancelled ctx is relayed before
// Bridge returns. stop detaches the relay and releases the token, it must always be called.
func Bridge(ctx context.Context, src shared.TokenSource, logger hclog.Logger) (tokenID string, stop func(), err error) {
	id, err := src.NewToken()
	if err != nil {
		return "", func() {}, serrors.NewIsolationError(StageBridge, err)
	}

	relay := func() {
		logger.Debug("relaying cancellation into worker", "token", id)
		if err := src.Cancel(id); err != nil {
			logger.Debug("failed to relay cancellation", "token", id, "error", err)
		}
	}

	detach := func() bool { return true }
	if ctx.Err() != nil {
		relay()
	} else {
		detach = context.AfterFunc(ctx, relay)
	}

	var once sync.Once
	stop = func() {
		once.Do(func() {
			detach()
			if err := src.Release(id); err != nil {
				logger.Debug("failed to release cancellation token", "token", id, "error", err)
			}
		})
	}
	return id, stop, nil
}
