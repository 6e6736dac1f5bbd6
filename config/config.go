// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port         int    `mapstructure:"port"`
	DatabaseURL  string `mapstructure:"database_url"`
	DatabaseType string `mapstructure:"database_type"`

	// IPHashSalt keys the HMAC applied to client IPs before they reach the
	// audit log. Raw IPs are never stored.
	IPHashSalt string `mapstructure:"ip_hash_salt"`

	// RoleServiceURL points at the external role/permission service. Empty
	// means every caller is treated as a plain voter.
	RoleServiceURL string `mapstructure:"role_service_url"`

	// RedisAddr enables the advisory draw lock when set.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// DrawSweepInterval is how often the scheduler looks for ended
	// elections whose lottery has not been drawn.
	DrawSweepInterval time.Duration `mapstructure:"draw_sweep_interval"`
}

// Load reads configuration from environment variables and an optional
// votelot.yaml in the working directory or /etc/votelot. Environment
// variables win over file values.
func Load() (Config, error) {
	v := viper.New()

	v.SetConfigName("votelot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/votelot")

	v.SetDefault("port", 3320)
	v.SetDefault("database_type", "postgres")
	v.SetDefault("redis_db", 0)
	v.SetDefault("draw_sweep_interval", time.Hour)

	// Env names match the mapstructure keys uppercased.
	for _, key := range []string{
		"port", "database_url", "database_type", "ip_hash_salt",
		"role_service_url", "redis_addr", "redis_password", "redis_db",
		"draw_sweep_interval",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, err
		}
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
		// No config file is fine; env is enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the settings the server cannot run without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL required (DATABASE_URL)")
	}
	if c.DatabaseType != "postgres" && c.DatabaseType != "sqlite" {
		return errors.New("DATABASE_TYPE must be postgres or sqlite")
	}
	if c.IPHashSalt == "" {
		return errors.New("IP_HASH_SALT required")
	}
	if c.DrawSweepInterval <= 0 {
		return errors.New("DRAW_SWEEP_INTERVAL must be positive")
	}
	return nil
}
