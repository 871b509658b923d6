// Package config loads the application configuration from file, environment
// and defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
)

// EnvPrefix prefixes every environment override, e.g. MLPLAY_LOG_LEVEL.
const EnvPrefix = "MLPLAY"

// App is the application configuration. Per-run settings live in run.Config.
type App struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string `mapstructure:"log_format" yaml:"log_format"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	Registry    string `mapstructure:"registry" yaml:"registry"`
	Addr        string `mapstructure:"addr" yaml:"addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	PreviewRows int    `mapstructure:"preview_rows" yaml:"preview_rows"`
	RandomState int64  `mapstructure:"random_state" yaml:"random_state"`
	Progress    bool   `mapstructure:"progress" yaml:"progress"`
}

func defaults(v *viper.Viper, dataDir string) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", log.FormatConsole)
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("registry", "")
	v.SetDefault("addr", "127.0.0.1:8501")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("preview_rows", 5)
	v.SetDefault("random_state", 42)
	v.SetDefault("progress", true)
}

// DefaultDataDir is ~/.mlplay.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, ".mlplay"), nil
}

// Load reads configuration with the precedence env > config file > defaults.
// When cfgFile is empty, config.yaml in the data directory is read if present.
func Load(cfgFile string) (*App, error) {
	dataDir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaults(v, dataDir)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfgFile)
		}
	} else {
		v.AddConfigPath(dataDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var c App
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if c.Registry == "" {
		c.Registry = filepath.Join(c.DataDir, "artifacts.db")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the values Load cannot coerce.
func (c *App) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", "must be debug, info, warn or error", c.LogLevel)
	}
	switch c.LogFormat {
	case log.FormatJSON, log.FormatText, log.FormatConsole:
	default:
		return errors.NewValidationError("log_format", "must be json, text or console", c.LogFormat)
	}
	if c.MaxUploadMB <= 0 {
		return errors.NewValidationError("max_upload_mb", "must be positive", c.MaxUploadMB)
	}
	if c.PreviewRows <= 0 {
		return errors.NewValidationError("preview_rows", "must be positive", c.PreviewRows)
	}
	return nil
}

// Save writes c as YAML to path, creating the directory if necessary.
func Save(c *App, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir config dir")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
