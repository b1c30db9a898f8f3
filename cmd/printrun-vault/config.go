package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type config struct {
	BackendURL      string
	BackendTimeout  time.Duration
	StoreDriver     string
	DataDir         string
	SQLitePath      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
	Port            string
	StaticDir       string
	RefreshInterval time.Duration
	Debug           bool
}

// loadConfig reads .env (if present), then an optional config file, then
// PRV_* environment variables, in increasing precedence.
func loadConfig(path string) (config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.sqlite_path", "data/vault.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "")
	v.SetDefault("server.port", "8990")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("index.refresh_interval", "15m")
	v.SetDefault("log.debug", false)
	v.SetDefault("backend.url", "")

	v.SetEnvPrefix("PRV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := config{
		BackendURL:      v.GetString("backend.url"),
		BackendTimeout:  v.GetDuration("backend.timeout"),
		StoreDriver:     strings.ToLower(v.GetString("store.driver")),
		DataDir:         v.GetString("store.dir"),
		SQLitePath:      v.GetString("store.sqlite_path"),
		RedisAddr:       v.GetString("store.redis_addr"),
		RedisPassword:   v.GetString("store.redis_password"),
		RedisDB:         v.GetInt("store.redis_db"),
		RedisPrefix:     v.GetString("store.redis_prefix"),
		Port:            v.GetString("server.port"),
		StaticDir:       v.GetString("server.static_dir"),
		RefreshInterval: v.GetDuration("index.refresh_interval"),
		Debug:           v.GetBool("log.debug"),
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.BackendURL == "" {
		return errors.New("PRV_BACKEND_URL is required. Set it in .env or as an environment variable")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got %s", c.BackendTimeout)
	}
	switch c.StoreDriver {
	case "file", "sqlite", "redis":
	default:
		return fmt.Errorf("store.driver must be file, sqlite or redis, got %q", c.StoreDriver)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("index.refresh_interval must not be negative, got %s", c.RefreshInterval)
	}
	return nil
}
