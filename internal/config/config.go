package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Log         LogConfig                 `json:"log"`
}

type BasicConfig struct {
	ServerAddress string   `json:"server_address"`
	Store         string   `json:"store"`
	TokenTTLHours int      `json:"token_ttl_hours"`
	AllowOrigins  []string `json:"allow_origins"`
	// TimeZone decides the calendar day for "due today". Empty means the host zone.
	TimeZone      string   `json:"time_zone"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type LogConfig struct {
	Mode  string `json:"mode"`
	Level string `json:"level"`
}

const (
	DefaultServerAddress = ":8090"
	DefaultStore         = "memory"
	DefaultTokenTTLHours = 24
)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress: DefaultServerAddress,
			Store:         DefaultStore,
			TokenTTLHours: DefaultTokenTTLHours,
		},
		Databases: map[string]DatabaseConfig{},
		Log:       LogConfig{Mode: "dev", Level: "info"},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A .env file in the working directory is applied first, and environment
// variables override file values. A missing config file yields defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	file, err := os.Open(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	default:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.fillDefaults()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if sqliteCfg, ok := cfg.Databases["sqlite3"]; ok && sqliteCfg.DSN != "" && sqliteCfg.DSN != ":memory:" &&
		!strings.HasPrefix(sqliteCfg.DSN, "file:") && !filepath.IsAbs(sqliteCfg.DSN) {
		sqliteCfg.DSN = filepath.Join(filepath.Dir(absPath), sqliteCfg.DSN)
		cfg.Databases["sqlite3"] = sqliteCfg
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("MEDTRACK_ADDR")); v != "" {
		cfg.BasicConfig.ServerAddress = v
	}
	if v := strings.TrimSpace(os.Getenv("MEDTRACK_STORE")); v != "" {
		cfg.BasicConfig.Store = v
	}
	if v := strings.TrimSpace(os.Getenv("MEDTRACK_DSN")); v != "" {
		store := strings.ToLower(cfg.BasicConfig.Store)
		dbCfg := cfg.Databases[store]
		dbCfg.DSN = v
		cfg.Databases[store] = dbCfg
	}
	if v := strings.TrimSpace(os.Getenv("MEDTRACK_TZ")); v != "" {
		cfg.BasicConfig.TimeZone = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Log.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		host, portStr, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("parse REDIS_ADDR: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("parse REDIS_ADDR port: %w", err)
		}
		cfg.Redis.Enabled = true
		cfg.Redis.Host = host
		cfg.Redis.Port = port
	}
	return nil
}

func (c *Config) fillDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.Store == "" {
		c.BasicConfig.Store = DefaultStore
	}
	if c.BasicConfig.TokenTTLHours <= 0 {
		c.BasicConfig.TokenTTLHours = DefaultTokenTTLHours
	}
	if c.Databases == nil {
		c.Databases = map[string]DatabaseConfig{}
	}
}

// Location resolves TimeZone. An empty value yields time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.BasicConfig.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.BasicConfig.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.BasicConfig.TimeZone, err)
	}
	return loc, nil
}
