package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scan-io-git/sarifer/pkg/shared/files"
)

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateSariferConfig(cfg); err != nil {
		return fmt.Errorf("YAML global config: sarifer directive is invalid: %w", err)
	}
	if err := ValidateRulesConfig(&cfg.Rules); err != nil {
		return fmt.Errorf("YAML global config: rules directive is invalid: %w", err)
	}
	if err := ValidateIsolationConfig(&cfg.Isolation); err != nil {
		return fmt.Errorf("YAML global config: isolation directive is invalid: %w", err)
	}
	if err := ValidateWatcherConfig(&cfg.Watcher); err != nil {
		return fmt.Errorf("YAML global config: watcher directive is invalid: %w", err)
	}
	if err := ValidateMetricsConfig(&cfg.Metrics); err != nil {
		return fmt.Errorf("YAML global config: metrics directive is invalid: %w", err)
	}
	return nil
}

// ValidateSariferConfig resolves the home and results folders.
func ValidateSariferConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("sarifer configuration is nil")
	}
	if err := updateHome(cfg); err != nil {
		return fmt.Errorf("failed to update home folder: %w", err)
	}
	if err := updateFolder(&cfg.Sarifer.ResultsFolder, "SARIFER_RESULTS_FOLDER", "results", cfg); err != nil {
		return fmt.Errorf("failed to update results folder: %w", err)
	}
	return nil
}

// ValidateRulesConfig checks the rules directory convention.
func ValidateRulesConfig(rules *Rules) error {
	if rules == nil {
		return fmt.Errorf("rules configuration is nil")
	}

	rules.FolderName = SetThen(rules.FolderName, DefaultRulesFolder)
	rules.Extension = SetThen(rules.Extension, DefaultRulesExtension)

	if filepath.IsAbs(rules.FolderName) || strings.Contains(rules.FolderName, "..") {
		return fmt.Errorf("folder_name must be relative to the project root: %q", rules.FolderName)
	}
	if !strings.HasPrefix(rules.Extension, ".") {
		return fmt.Errorf("extension must start with a dot: %q", rules.Extension)
	}
	return nil
}

// ValidateIsolationConfig checks the worker launch settings.
func ValidateIsolationConfig(iso *Isolation) error {
	if iso == nil {
		return fmt.Errorf("isolation configuration is nil")
	}

	iso.StartTimeout = SetThen(iso.StartTimeout, DefaultStartTimeout)
	if err := validateDuration(iso.StartTimeout, "start_timeout", 5*time.Minute); err != nil {
		return err
	}

	if iso.WorkerPath != "" {
		expanded, err := files.ExpandPath(iso.WorkerPath)
		if err != nil {
			return fmt.Errorf("failed to expand worker path %q: %w", iso.WorkerPath, err)
		}
		if err := files.ValidatePath(expanded); err != nil {
			return fmt.Errorf("worker_path is invalid: %w", err)
		}
		iso.WorkerPath = expanded
	}
	return nil
}

// ValidateWatcherConfig checks the document watcher settings.
func ValidateWatcherConfig(w *Watcher) error {
	if w == nil {
		return fmt.Errorf("watcher configuration is nil")
	}

	w.Debounce = SetThen(w.Debounce, DefaultDebounce)
	return validateDuration(w.Debounce, "debounce", 1*time.Minute)
}

// ValidateMetricsConfig checks the metrics listener address, if any.
func ValidateMetricsConfig(m *Metrics) error {
	if m == nil {
		return fmt.Errorf("metrics configuration is nil")
	}
	if m.ListenAddress == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen_address %q: %w", m.ListenAddress, err)
	}
	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// updateHome updates the HomeFolder from environment variables or sets a default value.
func updateHome(cfg *Config) error {
	if homeFolder := os.Getenv("SARIFER_HOME"); homeFolder != "" {
		cfg.Sarifer.HomeFolder = homeFolder
	} else if cfg.Sarifer.HomeFolder == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("unable to get user home folder: %w", err)
		}
		cfg.Sarifer.HomeFolder = filepath.Join(userHome, ".sarifer")
	}

	expandedHomePath, err := files.ExpandPath(cfg.Sarifer.HomeFolder)
	if err != nil {
		return fmt.Errorf("failed to expand new home path %q: %w", cfg.Sarifer.HomeFolder, err)
	}
	cfg.Sarifer.HomeFolder = expandedHomePath

	if err := files.CreateFolderIfNotExists(expandedHomePath); err != nil {
		return fmt.Errorf("failed to create home folder %q: %w", cfg.Sarifer.HomeFolder, err)
	}
	return nil
}

// updateFolder updates a folder path in the sarifer configuration.
func updateFolder(folder *string, envVar, defaultSubFolder string, cfg *Config) error {
	if envVarValue := os.Getenv(envVar); envVarValue != "" {
		*folder = envVarValue
	} else if *folder == "" {
		*folder = filepath.Join(cfg.Sarifer.HomeFolder, defaultSubFolder)
	}

	expandedPath, err := files.ExpandPath(*folder)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", *folder, err)
	}
	*folder = expandedPath

	if err := files.CreateFolderIfNotExists(expandedPath); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", expandedPath, err)
	}
	return nil
}
