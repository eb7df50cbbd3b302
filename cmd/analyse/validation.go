package analyse

import (
	"fmt"
	"os"
	"path/filepath"
)

// validateAnalyseArgs validates the arguments provided to the analyse command.
func validateAnalyseArgs(options *RunOptionsAnalyse, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("a target path must be specified")
	}
	if len(args) > 1 {
		return fmt.Errorf("only one target path can be analysed at a time, got %d", len(args))
	}

	targetPath := args[0]
	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		return fmt.Errorf("the target path does not exist: %v", targetPath)
	}

	if options.OutputPath != "" && filepath.Clean(options.OutputPath) == filepath.Clean(targetPath) {
		return fmt.Errorf("the output path cannot be the target path: %v", options.OutputPath)
	}
	return nil
}
