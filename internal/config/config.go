// Package config loads statbridge configuration from the environment and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"statbridge/datatable"
	"statbridge/options"
)

const (
	// EnvPrefix prefixes every environment variable, e.g.
	// STATBRIDGE_IMPORT_THRESHOLD.
	EnvPrefix = "STATBRIDGE"

	// FileEnv names the environment variable holding the config file path.
	FileEnv = "STATBRIDGE_CONFIG"

	// DefaultFile is read when FileEnv is unset and the file exists.
	DefaultFile = "statbridge.yaml"
)

// Config represents the complete application configuration
type Config struct {
	Import  ImportConfig  `yaml:"import" envconfig:"IMPORT"`
	Forms   FormsConfig   `yaml:"forms" envconfig:"FORMS"`
	Wrapper WrapperConfig `yaml:"wrapper" envconfig:"WRAPPER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ImportConfig controls column classification.
type ImportConfig struct {
	Threshold          int  `yaml:"threshold" envconfig:"THRESHOLD" default:"10" validate:"gt=0"`
	OrderLabelsByValue bool `yaml:"order_labels_by_value" envconfig:"ORDER_LABELS_BY_VALUE" default:"true"`
	ThresholdInclusive bool `yaml:"threshold_inclusive" envconfig:"THRESHOLD_INCLUSIVE" default:"true"`
	TextAlwaysNominal  bool `yaml:"text_always_nominal" envconfig:"TEXT_ALWAYS_NOMINAL" default:"true"`
}

// FormsConfig controls form compilation.
type FormsConfig struct {
	Extension string `yaml:"extension" envconfig:"EXTENSION" default:".go" validate:"required,startswith=."`
	// PluginDir is the GOPATH forms resolve their imports against.
	PluginDir string `yaml:"plugin_dir" envconfig:"PLUGIN_DIR"`
}

// WrapperConfig places generated wrapper files.
type WrapperConfig struct {
	Dir    string `yaml:"dir" envconfig:"DIR" default:"R" validate:"required"`
	Suffix string `yaml:"suffix" envconfig:"SUFFIX" default:"Wrapper.R" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/statbridge.log" validate:"required_unless=Output console"`
}

// Load reads the environment, then overlays the file named by
// STATBRIDGE_CONFIG or ./statbridge.yaml when present, then validates.
func Load() (*Config, error) {
	path, explicit := os.LookupEnv(FileEnv)
	if !explicit || path == "" {
		path, explicit = DefaultFile, false
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if err := overlayFile(cfg, path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is Load with an explicit config file that must exist.
func LoadFile(path string) (*Config, error) {
	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}
	if err := overlayFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return &cfg, nil
}

// overlayFile sets the keys present in the YAML file; absent keys keep
// their current values.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Policy returns the classification policy of the import section.
func (c *Config) Policy() datatable.Policy {
	return datatable.Policy{
		Threshold:          c.Import.Threshold,
		OrderLabelsByValue: c.Import.OrderLabelsByValue,
		ThresholdInclusive: c.Import.ThresholdInclusive,
		TextAlwaysNominal:  c.Import.TextAlwaysNominal,
	}
}

// Layout returns where wrapper files are written.
func (c *Config) Layout() options.Layout {
	return options.Layout{Dir: c.Wrapper.Dir, Suffix: c.Wrapper.Suffix}
}
