package main

import (
	"github.com/scan-io-git/sarifer/internal/worker"
	"github.com/scan-io-git/sarifer/pkg/shared/logger"
)

// Standalone analysis worker. Point isolation.worker_path at this binary to run the
// engine from a separate build instead of re-executing the host.
func main() {
	worker.Serve(logger.NewWorkerLogger("spam"))
}
