// Package config loads server settings from flags, the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "NAJDENO"

// Defaults.
const (
	DefaultDB           = "najdeno.sqlite3"
	DefaultAddr         = ":8080"
	DefaultAdminUser    = "Admin"
	DefaultConfigFile   = "najdeno.yaml"
	DefaultEnvFile      = ".env"
	DefaultStoreTimeout = 5 * time.Second
	DefaultMatchLimit   = 5
	DefaultPushBuffer   = 32
)

// Config holds the server settings.
type Config struct {
	// DB is a SQLite path or a postgres:// DSN.
	DB           string        `mapstructure:"db"`
	Addr         string        `mapstructure:"addr"`
	AdminUser    string        `mapstructure:"admin_user"`
	Log          string        `mapstructure:"log"`
	Debug        bool          `mapstructure:"debug"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	MatchLimit   int           `mapstructure:"match_limit"`
	PushBuffer   int           `mapstructure:"push_buffer"`
}

// flag name -> config key, for flags whose names differ from their keys.
var flagKeys = map[string]string{
	"user":          "admin_user",
	"store-timeout": "store_timeout",
	"match-limit":   "match_limit",
	"push-buffer":   "push_buffer",
}

// Flags returns the command-line flags Load understands.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.StringP("config", "c", DefaultConfigFile, "YAML config file (skipped when missing)")
	f.String("env-file", DefaultEnvFile, "dotenv file (skipped when missing)")
	f.StringP("db", "d", DefaultDB, "SQLite database path or postgres:// DSN")
	f.StringP("addr", "a", DefaultAddr, "listen address")
	f.StringP("user", "u", DefaultAdminUser, "admin username on first run")
	f.StringP("log", "l", "", "log file path")
	f.Bool("debug", false, "enable debug logging")
	f.Duration("store-timeout", DefaultStoreTimeout, "timeout for a single store operation")
	f.Int("match-limit", DefaultMatchLimit, "maximum possible matches per evaluation")
	f.Int("push-buffer", DefaultPushBuffer, "buffered events per live connection")
	return f
}

// Load resolves the configuration. Precedence, highest first: flags set on
// the command line, NAJDENO_* environment variables (including those from
// the dotenv file), the YAML config file, defaults.
func Load(flags *pflag.FlagSet) (*Config, error) {
	envFile, _ := flags.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetDefault("db", DefaultDB)
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("admin_user", DefaultAdminUser)
	v.SetDefault("log", "")
	v.SetDefault("debug", false)
	v.SetDefault("store_timeout", DefaultStoreTimeout)
	v.SetDefault("match_limit", DefaultMatchLimit)
	v.SetDefault("push_buffer", DefaultPushBuffer)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !missingFile(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	// Only flags given explicitly override the layers below.
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "env-file" {
			return
		}
		key := f.Name
		if k, ok := flagKeys[f.Name]; ok {
			key = k
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("binding flag %s: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DB) == "":
		return errors.New("db must not be empty")
	case strings.TrimSpace(c.Addr) == "":
		return errors.New("addr must not be empty")
	case strings.TrimSpace(c.AdminUser) == "":
		return errors.New("admin_user must not be empty")
	case c.StoreTimeout <= 0:
		return fmt.Errorf("store_timeout must be positive, got %s", c.StoreTimeout)
	case c.MatchLimit < 1:
		return fmt.Errorf("match_limit must be at least 1, got %d", c.MatchLimit)
	case c.PushBuffer < 1:
		return fmt.Errorf("push_buffer must be at least 1, got %d", c.PushBuffer)
	}
	return nil
}

func missingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && errors.Is(pathErr.Err, fs.ErrNotExist)
}
