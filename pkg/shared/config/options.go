package config

import (
	"fmt"
	"os"
	"sync"
)

// OptionsSource returns the analysis options current at the time of the call.
type OptionsSource interface {
	Options() (AnalysisOptions, error)
}

// StaticOptions always returns the same options.
type StaticOptions AnalysisOptions

func (s StaticOptions) Options() (AnalysisOptions, error) {
	return AnalysisOptions(s), nil
}

// FileOptions re-reads the analysis directive of a config file on every call,
// so edits take effect on the next document event without a restart.
type FileOptions struct {
	Path     string
	Fallback AnalysisOptions

	mu   sync.Mutex
	last AnalysisOptions
	seen bool
}

// NewFileOptions returns a FileOptions reading path, falling back to fallback while the file is absent.
func NewFileOptions(path string, fallback AnalysisOptions) *FileOptions {
	return &FileOptions{Path: path, Fallback: fallback}
}

func (f *FileOptions) Options() (AnalysisOptions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.Path); os.IsNotExist(err) {
		return f.Fallback, nil
	}

	doc := struct {
		Analysis AnalysisOptions `yaml:"analysis"`
	}{Analysis: f.Fallback}
	if err := LoadYAML(f.Path, &doc); err != nil {
		if f.seen {
			return f.last, fmt.Errorf("failed to re-read analysis options from %q: %w", f.Path, err)
		}
		return f.Fallback, fmt.Errorf("failed to read analysis options from %q: %w", f.Path, err)
	}

	f.last, f.seen = doc.Analysis, true
	return doc.Analysis, nil
}
