package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/pkg/shared/config"
)

// NewLogger builds a named logger writing to stdout.
func NewLogger(cfg *config.Config, name string) hclog.Logger {
	return newLogger(cfg, name, os.Stdout, false)
}

// NewWorkerLogger builds the logger used inside the worker process.
// go-plugin relays JSON lines on stderr into the host logger with their levels intact.
func NewWorkerLogger(name string) hclog.Logger {
	return newLogger(nil, name, os.Stderr, true)
}

func newLogger(cfg *config.Config, name string, output io.Writer, forceJSON bool) hclog.Logger {
	var logLevel hclog.Level

	// env variable has the first priority
	if logLevelEnv := os.Getenv("SARIFER_LOG_LEVEL"); logLevelEnv != "" {
		logLevel = getLogLevel(strings.ToUpper(logLevelEnv))
	} else if cfg != nil && cfg.Logger.Level != "" {
		logLevel = getLogLevel(strings.ToUpper(cfg.Logger.Level))
	} else {
		logLevel = hclog.Info
	}

	opts := &hclog.LoggerOptions{
		Name:        name,
		DisableTime: true,
		Output:      output,
		Level:       logLevel,
		JSONFormat:  forceJSON,
	}
	if cfg != nil {
		opts.DisableTime = config.GetBoolValue(cfg, "Logger.DisableTime", true)
		opts.JSONFormat = forceJSON || config.GetBoolValue(cfg, "Logger.JSONFormat", false)
		opts.IncludeLocation = config.GetBoolValue(cfg, "Logger.IncludeLocation", false)
	}

	return hclog.New(opts)
}

func getLogLevel(levelStr string) hclog.Level {
	switch levelStr {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		return hclog.Info
	}
}
