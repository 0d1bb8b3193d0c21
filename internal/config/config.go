// Package config loads the strata CLI's own configuration using Viper.
package config

import (
	"io/fs"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/thoreinstein/strata/internal/paths"
	"github.com/thoreinstein/strata/pkg/provider"
)

// EnvPrefix prefixes environment variables that override config keys,
// for example STRATA_LOG_LEVEL.
const EnvPrefix = "STRATA"

// EnvStorePrefix selects the variables the default env store exposes.
const EnvStorePrefix = "STRATA_VAR_"

// Config represents the top-level configuration structure.
type Config struct {
	Version   int           `mapstructure:"version" yaml:"version"`
	Delimiter string        `mapstructure:"delimiter" yaml:"delimiter"`
	Output    string        `mapstructure:"output" yaml:"output"`
	Log       LogConfig     `mapstructure:"log" yaml:"log"`
	Backup    BackupConfig  `mapstructure:"backup" yaml:"backup"`
	Stores    []StoreConfig `mapstructure:"stores" yaml:"stores"`
}

// LogConfig sets logging defaults that command-line flags override.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty"`
	Format string `mapstructure:"format" yaml:"format,omitempty"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// BackupConfig controls the snapshots taken before writes.
type BackupConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Retention is the number of snapshots kept per store.
	Retention int `mapstructure:"retention" yaml:"retention,omitempty"`

	// Dir overrides the backup root. Empty means the strata data directory.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// StoreConfig declares one store. Stores are listed highest precedence
// first within their tier.
type StoreConfig struct {
	Name          string `mapstructure:"name" yaml:"name"`
	provider.Spec `mapstructure:",squash" yaml:",inline"`
}

// DefaultStores returns the stores used when the config file declares
// none: prefixed environment variables over a user file.
func DefaultStores() []StoreConfig {
	return []StoreConfig{
		{
			Name: "env",
			Spec: provider.Spec{
				Type:     "env",
				ReadOnly: true,
				Options: map[string]any{
					"prefix":       EnvStorePrefix,
					"lowercase":    true,
					"parse_values": true,
				},
			},
		},
		{
			Name: "user",
			Spec: provider.Spec{
				Type:    "file",
				Options: map[string]any{"file": paths.UserStoreFile()},
			},
		},
	}
}

// Init configures the global Viper instance. Call it once at startup
// before Load.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath(paths.ConfigDir())

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("version", 1)
	viper.SetDefault("delimiter", ":")
	viper.SetDefault("output", "yaml")
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.file", "")
	viper.SetDefault("backup.enabled", true)
	viper.SetDefault("backup.retention", 5)
	viper.SetDefault("backup.dir", "")
}

// Load reads the configuration file at path, or searches the default
// locations when path is empty. A missing file is only an error when path
// was given explicitly. The result is not validated.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
			// no file anywhere; defaults apply
		case errors.Is(err, fs.ErrNotExist):
			return nil, errors.Wrapf(err, "config file not found at %s", path)
		default:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if len(cfg.Stores) == 0 {
		cfg.Stores = DefaultStores()
	}
	return &cfg, nil
}

// Used returns the config file Load read, or "" when none was found.
func Used() string {
	return viper.ConfigFileUsed()
}
