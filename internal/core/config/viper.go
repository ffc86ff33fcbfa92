package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"db-url":     "database.url",
	"log-level":  "log.level",
	"log-format": "log.format",
	"host":       "server.host",
	"port":       "server.port",
	"http-port":  "server.http_port",
	"data-dir":   "server.data_dir",
}

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags named in flagKeys are bound.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	// Environment variables use the IF_ prefix: IF_SERVER_PORT, IF_DATABASE_URL.
	v.SetEnvPrefix("IF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			HTTPPort:       v.GetInt("server.http_port"),
			MaxConnections: v.GetInt("server.max_connections"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxBatchSize:   v.GetInt("server.max_batch_size"),
			DataDir:        v.GetString("server.data_dir"),
			ReloadSchedule: v.GetString("server.reload_schedule"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Rules: RulesConfig{
			ScriptTimeout: v.GetDuration("rules.script_timeout"),
			Priorities:    map[string]int{},
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := v.UnmarshalKey("rules.priorities", &cfg.Rules.Priorities); err != nil {
		return nil, fmt.Errorf("rules.priorities: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_batch_size", d.Server.MaxBatchSize)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.reload_schedule", d.Server.ReloadSchedule)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("rules.script_timeout", d.Rules.ScriptTimeout.String())
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// validateConfig checks ports, positive limits and the reload schedule.
func validateConfig(cfg *Config) error {
	s := cfg.Server
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.HTTPPort < 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got %d", s.HTTPPort)
	}
	if s.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", s.MaxConnections)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", s.RequestTimeout)
	}
	if s.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", s.MaxBatchSize)
	}
	if s.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(s.ReloadSchedule); err != nil {
			return fmt.Errorf("reload_schedule %q: %w", s.ReloadSchedule, err)
		}
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if cfg.Rules.ScriptTimeout <= 0 {
		return fmt.Errorf("script_timeout must be positive, got %v", cfg.Rules.ScriptTimeout)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use IF_HMAC_SECRET environment variable)")
	}
	return nil
}
