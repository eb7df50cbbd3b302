package analyse

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalcmd "github.com/scan-io-git/sarifer/internal/cmd"
	"github.com/scan-io-git/sarifer/internal/sarif"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
)

func TestValidateAnalyseArgs(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "app.js")
	require.NoError(t, os.WriteFile(tmpFile, []byte("var a = 1;"), 0o644))

	tests := []struct {
		name     string
		options  RunOptionsAnalyse
		args     []string
		wantMode string
		wantErr  string
	}{
		{
			// valid: sarifer analyse /path/to/project
			name:     "Valid project path",
			args:     []string{tmpDir},
			wantMode: internalcmd.ModeProject,
		},
		{
			// valid: sarifer analyse /path/to/project/app.js
			name:     "Valid file path",
			args:     []string{tmpFile},
			wantMode: internalcmd.ModeSingleFile,
		},
		{
			// valid: sarifer analyse --output /path/to/report.sarif /path/to/project
			name:     "Valid project path with output",
			options:  RunOptionsAnalyse{OutputPath: filepath.Join(tmpDir, "report.sarif")},
			args:     []string{tmpDir},
			wantMode: internalcmd.ModeProject,
		},
		{
			// fail: sarifer analyse
			name:    "Missing target path",
			args:    []string{},
			wantErr: "a target path must be specified",
		},
		{
			// fail: sarifer analyse /a /b
			name:    "Several target paths",
			args:    []string{tmpDir, tmpFile},
			wantErr: "only one target path can be analysed at a time, got 2",
		},
		{
			// fail: sarifer analyse /invalid/path/to/target
			name:    "Invalid target path",
			args:    []string{"/invalid/path/to/target"},
			wantErr: "the target path does not exist: /invalid/path/to/target",
		},
		{
			// fail: sarifer analyse --output /path/to/app.js /path/to/app.js
			name:    "Output overwrites the target",
			options: RunOptionsAnalyse{OutputPath: tmpFile},
			args:    []string{tmpFile},
			wantErr: "the output path cannot be the target path: " + tmpFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAnalyseArgs(&tt.options, tt.args)
			if tt.wantErr == "" {
				require.NoError(t, err)
				_, mode, err := prepareTarget(tt.args[0])
				require.NoError(t, err)
				assert.Equal(t, tt.wantMode, mode)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestHasFlags(t *testing.T) {
	flags := pflag.NewFlagSet("analyse", pflag.ContinueOnError)
	flags.Bool("include-pass", false, "")
	assert.False(t, hasFlags(flags))

	require.NoError(t, flags.Parse([]string{"--include-pass"}))
	assert.True(t, hasFlags(flags))
}

func TestAnalysisOptions(t *testing.T) {
	got := analysisOptions(config.AnalysisOptions{IncludePassResults: true}, &RunOptionsAnalyse{AnalyzeSarif: true})
	assert.Equal(t, config.AnalysisOptions{
		BackgroundAnalysisEnabled: true,
		IncludePassResults:        true,
		AnalyzeSarifArtifacts:     true,
	}, got)
}

func TestIgnoredFolders(t *testing.T) {
	cfg := config.Default()
	ignore := ignoredFolders(cfg)
	assert.Equal(t, []string{".git", "node_modules", config.DefaultRulesFolder}, ignore)
	assert.Len(t, cfg.Watcher.Ignore, 2, "the configured list is left untouched")
}

func TestWriteLog(t *testing.T) {
	now := time.Now()
	log, err := sarif.Build(nil, sarif.DefaultTool, sarif.Filter{}, sarif.RunWindow{Started: now, Stopped: now, Successful: true})
	require.NoError(t, err)

	t.Run("into the results folder", func(t *testing.T) {
		results := filepath.Join(t.TempDir(), "results")
		path, err := writeLog(log, "", results, "/work/my project")
		require.NoError(t, err)
		assert.Equal(t, results, filepath.Dir(path))
		assert.Contains(t, filepath.Base(path), "my_project-")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "2.1.0", doc["version"])
	})

	t.Run("into an explicit file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "nested", "report.sarif")
		path, err := writeLog(log, out, "", "/work/app")
		require.NoError(t, err)
		assert.Equal(t, out, path)
		assert.FileExists(t, out)
	})
}
