// Package config loads the simulator's configuration, layered environment
// variables (highest) over an optional YAML file over built-in defaults,
// matching acdtunes-spacetraders's infrastructure/config.LoadConfig pattern
// (§4.9).
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every flag/env/file-bound setting the CLI accepts.
type Config struct {
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	TickMS   int    `mapstructure:"tick_ms"`
	RedisURL string `mapstructure:"redis_url"`
	NATSURL  string `mapstructure:"nats_url"`
	InfluxURL string `mapstructure:"influx_url"`
	InfluxToken string `mapstructure:"influx_token"`
	InfluxOrg string `mapstructure:"influx_org"`
	InfluxBucket string `mapstructure:"influx_bucket"`
}

// SetDefaults fills the reference values (§6.3): port 8080, a 1-second
// tick, every optional integration disabled.
func SetDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.TickMS == 0 {
		cfg.TickMS = 1000
	}
}

// configKeys lists every mapstructure key Load binds. Unmarshal only
// consults the environment for keys explicitly bound with BindEnv — a bare
// AutomaticEnv is only honored by direct Get calls — so every field needs
// its own binding for the SIM_ env override to reach the struct.
var configKeys = []string{
	"port", "data_dir", "tick_ms", "redis_url", "nats_url",
	"influx_url", "influx_token", "influx_org", "influx_bucket",
}

// Load builds a viper instance layered env (SIM_ prefix) > YAML file >
// defaults, then lets values the caller placed with v.Set before Load
// (cmd/serve copies each non-empty CLI flag this way) outrank both. configPath, if non-empty, is read as a YAML file;
// a missing default config file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	SetDefaults(&cfg)
	return &cfg, nil
}
