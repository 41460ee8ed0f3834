package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files, environment variables and flags.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	LogLevel string `mapstructure:"log_level"`

	Address       string        `mapstructure:"address"`
	Method        string        `mapstructure:"method"`
	Body          string        `mapstructure:"body"`
	TimeoutMs     int64         `mapstructure:"timeout_ms"`
	Timeout       time.Duration `mapstructure:"-"`
	LineSeparator string        `mapstructure:"line_separator"`

	PresetsFile string `mapstructure:"presets_file"`
	SinksFile   string `mapstructure:"sinks_file"`

	StorageType           string        `mapstructure:"storage_type"`
	BBoltPath             string        `mapstructure:"bbolt_path"`
	HistoryTTLSeconds     int64         `mapstructure:"history_ttl_seconds"`
	HistoryCleanupSeconds int64         `mapstructure:"history_cleanup_interval_seconds"`
	HistoryLimit          int           `mapstructure:"history_limit"`
	HistoryTTL            time.Duration `mapstructure:"-"`
	HistoryCleanup        time.Duration `mapstructure:"-"`
}

// Load reads configuration from configs/.env, environment variables and,
// when non-nil, the given flag set. Flags win over environment.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "httprequester")
	v.SetDefault("log_level", "info")
	v.SetDefault("address", "")
	v.SetDefault("method", "POST")
	v.SetDefault("body", "")
	v.SetDefault("timeout_ms", 0)
	v.SetDefault("line_separator", "")
	v.SetDefault("presets_file", "")
	v.SetDefault("sinks_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/history.db")
	v.SetDefault("history_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("history_cleanup_interval_seconds", int64((6*time.Hour)/time.Second))
	v.SetDefault("history_limit", 20)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags binds every flag to the viper key of the same name with dashes turned into underscores.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag %q: %w", f.Name, err)
		}
	})
	return bindErr
}

func (cfg *Config) normalize() error {
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	if cfg.Method != "GET" && cfg.Method != "POST" {
		return fmt.Errorf("invalid method %q (must be GET or POST)", cfg.Method)
	}

	if cfg.TimeoutMs < 0 {
		return fmt.Errorf("invalid timeout_ms (must be zero or positive milliseconds)")
	}
	cfg.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond

	if cfg.HistoryTTLSeconds <= 0 {
		return fmt.Errorf("invalid history_ttl_seconds (must be positive seconds)")
	}
	if cfg.HistoryCleanupSeconds <= 0 {
		return fmt.Errorf("invalid history_cleanup_interval_seconds (must be positive seconds)")
	}
	if cfg.HistoryLimit <= 0 {
		return fmt.Errorf("invalid history_limit (must be positive)")
	}
	cfg.HistoryTTL = time.Duration(cfg.HistoryTTLSeconds) * time.Second
	cfg.HistoryCleanup = time.Duration(cfg.HistoryCleanupSeconds) * time.Second

	return nil
}
