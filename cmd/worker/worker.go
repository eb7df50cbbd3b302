package worker

import (
	"github.com/spf13/cobra"

	"github.com/scan-io-git/sarifer/internal/worker"
	"github.com/scan-io-git/sarifer/pkg/shared"
	"github.com/scan-io-git/sarifer/pkg/shared/logger"
)

// NewWorkerCmd creates the hidden command the host re-executes itself with to run
// an isolated analysis worker. It speaks the plugin protocol on stdio and must not
// be started by hand.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   shared.WorkerCommand,
		Hidden:                true,
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Runs an isolated analysis worker",
		Args:                  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			worker.Serve(logger.NewWorkerLogger("worker"))
		},
	}
}
