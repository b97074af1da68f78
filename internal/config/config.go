// Package config resolves acplog settings from flags, ACPLOG_* environment
// variables, an optional acplog.yaml file and built-in defaults, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"acplog/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. ACPLOG_SESSIONS_DIR.
const EnvPrefix = "ACPLOG"

// Setting keys. Flags bind to these names.
const (
	KeySource      = "source"
	KeySessionsDir = "sessions_dir"
	KeyDB          = "db_path"
	KeyLogLevel    = "log_level"
	KeyURL         = "url"
)

// Config is the resolved runtime configuration.
type Config struct {
	Source      model.SourceKind
	SessionsDir string
	DBPath      string
	LogLevel    string
	URL         string
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".acplog")

	v.SetDefault(KeySource, string(model.SourceJSONL))
	v.SetDefault(KeySessionsDir, filepath.Join(base, "sessions"))
	v.SetDefault(KeyDB, filepath.Join(base, "acplog.db"))
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyURL, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile, or acplog.yaml from ~/.acplog and the working
// directory when configFile is empty, and returns the merged settings. A
// missing default config file is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("acplog")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".acplog"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Source:      model.SourceKind(strings.ToLower(v.GetString(KeySource))),
		SessionsDir: expandHome(v.GetString(KeySessionsDir)),
		DBPath:      expandHome(v.GetString(KeyDB)),
		LogLevel:    v.GetString(KeyLogLevel),
		URL:         v.GetString(KeyURL),
	}
	switch cfg.Source {
	case model.SourceJSONL, model.SourceSQLite:
	default:
		return Config{}, fmt.Errorf("%w: %s", model.ErrUnknownSource, cfg.Source)
	}
	return cfg, nil
}

// Location returns the path the configured source opens.
func (c Config) Location() string {
	if c.Source == model.SourceSQLite {
		return c.DBPath
	}
	return c.SessionsDir
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
