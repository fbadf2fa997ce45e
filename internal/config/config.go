// Package config loads service settings from an optional YAML file and
// PRESSDESK_-prefixed environment variables. Environment always wins.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the binaries need to start.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	DatabaseDSN     string        `mapstructure:"database_dsn"`
	TokenSecret     string        `mapstructure:"token_secret"`
	AccessTTL       time.Duration `mapstructure:"access_ttl"`
	RateRPS         float64       `mapstructure:"rate_rps"`
	RateBurst       int           `mapstructure:"rate_burst"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSAllowOrigin string        `mapstructure:"cors_allow_origin"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	SeedsDir        string        `mapstructure:"seeds_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configPath if non-empty (missing file is not an error) and
// overlays PRESSDESK_* environment variables.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRESSDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("addr", ":8080")
	v.SetDefault("database_dsn", "")
	v.SetDefault("token_secret", "")
	v.SetDefault("access_ttl", time.Hour)
	v.SetDefault("rate_rps", 50.0)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("max_body_bytes", int64(1<<20))
	v.SetDefault("cors_allow_origin", "*")
	v.SetDefault("migrations_dir", "db/migrations")
	v.SetDefault("seeds_dir", "db/seeds")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.TokenSecret == "" {
		return fmt.Errorf("token_secret is required (set PRESSDESK_TOKEN_SECRET)")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("access_ttl must be positive")
	}
	return nil
}
