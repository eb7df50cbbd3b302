package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/sarifer/internal/sarif"
	"github.com/scan-io-git/sarifer/pkg/shared/files"
)

// Sink consumes result logs. Drop discards whatever was published for target.
type Sink interface {
	Publish(ctx context.Context, target string, log *sarif.ResultLog) error
	Drop(target string) error
}

// FileSink writes one SARIF file per target into a folder.
type FileSink struct {
	folder string
	logger hclog.Logger

	mu sync.Mutex
}

func NewFileSink(folder string, logger hclog.Logger) (*FileSink, error) {
	if err := files.CreateFolderIfNotExists(folder); err != nil {
		return nil, err
	}
	return &FileSink{folder: folder, logger: logger}, nil
}

// Path returns where the log of target is written. Names are stable per target.
func (s *FileSink) Path(target string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(filepath.Clean(target))))
	return filepath.Join(s.folder, fmt.Sprintf("%s_%s%s", filepath.Base(target), id.String()[:8], ".sarif"))
}

func (s *FileSink) Publish(_ context.Context, target string, log *sarif.ResultLog) error {
	data, err := log.Bytes()
	if err != nil {
		return err
	}

	path := s.Path(target)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := files.WriteJsonFile(path, data); err != nil {
		return fmt.Errorf("failed to write results for %q: %w", target, err)
	}
	s.logger.Debug("results saved to file", "target", target, "path", path)
	return nil
}

func (s *FileSink) Drop(target string) error {
	path := s.Path(target)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove results for %q: %w", target, err)
	}
	return nil
}

// LogSink reports a severity summary of every log through the logger.
type LogSink struct {
	logger hclog.Logger
}

func NewLogSink(logger hclog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, target string, log *sarif.ResultLog) error {
	info := log.CollectSeverityInfo()
	s.logger.Info("analysis results",
		"target", target,
		"total", info["total"],
		"high", info["high"],
		"medium", info["medium"],
		"low", info["low"],
		"pass", info["pass"],
	)
	return nil
}

func (s *LogSink) Drop(target string) error {
	s.logger.Info("results dropped", "target", target)
	return nil
}
