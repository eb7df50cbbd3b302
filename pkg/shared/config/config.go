package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the global configuration read from config.yml.
type Config struct {
	Logger    Logger          `yaml:"logger"`
	Sarifer   Sarifer         `yaml:"sarifer"`
	Analysis  AnalysisOptions `yaml:"analysis"`
	Rules     Rules           `yaml:"rules"`
	Isolation Isolation       `yaml:"isolation"`
	Watcher   Watcher         `yaml:"watcher"`
	Metrics   Metrics         `yaml:"metrics"`
}

type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

type Sarifer struct {
	HomeFolder    string `yaml:"home_folder"`
	ResultsFolder string `yaml:"results_folder"`
}

// AnalysisOptions are the user-facing switches consulted on every analysis request.
type AnalysisOptions struct {
	BackgroundAnalysisEnabled bool `yaml:"background_analysis_enabled"`
	IncludePassResults        bool `yaml:"include_pass_results"`
	AnalyzeSarifArtifacts     bool `yaml:"analyze_sarif_artifacts"`
}

type Rules struct {
	FolderName string `yaml:"folder_name"`
	Extension  string `yaml:"extension"`
	Watch      bool   `yaml:"watch"`
}

type Isolation struct {
	WorkerPath   string        `yaml:"worker_path"`
	StartTimeout time.Duration `yaml:"start_timeout"`
}

type Watcher struct {
	Debounce time.Duration `yaml:"debounce"`
	Ignore   []string      `yaml:"ignore"`
}

type Metrics struct {
	ListenAddress string `yaml:"listen_address"`
}

const (
	DefaultRulesFolder    = ".spam"
	DefaultRulesExtension = ".json"
	DefaultStartTimeout   = 30 * time.Second
	DefaultDebounce       = 300 * time.Millisecond
)

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Analysis: AnalysisOptions{BackgroundAnalysisEnabled: true},
		Rules: Rules{
			FolderName: DefaultRulesFolder,
			Extension:  DefaultRulesExtension,
		},
		Isolation: Isolation{StartTimeout: DefaultStartTimeout},
		Watcher: Watcher{
			Debounce: DefaultDebounce,
			Ignore:   []string{".git", "node_modules"},
		},
	}
}

func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads configPath on top of the defaults.
// A missing file is not an error: the defaults are returned as is.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}
	return cfg, nil
}
