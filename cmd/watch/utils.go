package watch

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/internal/sarif"
	"github.com/scan-io-git/sarifer/internal/watcher"
)

// documentEvents is the part of the service the watcher feeds.
type documentEvents interface {
	OnDocumentReady(ctx context.Context, target string, text *string) *sarif.ResultLog
	OnDocumentClosed(target string)
}

// spawner starts a goroutine tracked by the caller.
type spawner interface {
	Go(f func() error)
}

// handleChanges turns debounced file changes into document events. Each written or created
// file is analysed on its own goroutine; the coordinator drops runs for a target that is
// already being analysed.
func handleChanges(ctx context.Context, g spawner, events documentEvents, logger hclog.Logger) watcher.Handler {
	return func(changes []watcher.Change) {
		for _, change := range changes {
			target := change.Path
			switch change.Op {
			case watcher.OpWrite, watcher.OpCreate:
				logger.Debug("document ready", "target", target, "op", change.Op)
				g.Go(func() error {
					events.OnDocumentReady(ctx, target, nil)
					return nil
				})
			case watcher.OpRemove, watcher.OpRename:
				logger.Debug("document closed", "target", target, "op", change.Op)
				events.OnDocumentClosed(target)
			}
		}
	}
}
