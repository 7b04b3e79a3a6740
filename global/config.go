package global

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AppConfig is the whole-process configuration. Values come from an optional
// yaml file, then env overrides, then defaults via norm().
type AppConfig struct {
	NodeID   int    `yaml:"node_id"`   // snowflake node part, 0~1023
	Port     int    `yaml:"port"`      // HTTP + WebSocket listen port
	MongoURI string `yaml:"mongo_uri"` // e.g. mongodb://127.0.0.1:27017
	MongoDB  string `yaml:"mongo_db"`

	RedisAddr     string `yaml:"redis_addr"` // empty disables the presence index
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	JWTSecret string `yaml:"jwt_secret"`

	PingIntervalSec int `yaml:"ping_interval_sec"` // liveness probe interval
	RingTimeoutSec  int `yaml:"ring_timeout_sec"`  // unanswered call -> missed
}

func (c *AppConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

func (c *AppConfig) RingTimeout() time.Duration {
	return time.Duration(c.RingTimeoutSec) * time.Second
}

func (c *AppConfig) norm() {
	if c.NodeID <= 0 || c.NodeID > 1023 {
		c.NodeID = 1
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://127.0.0.1:27017"
	}
	if c.MongoDB == "" {
		c.MongoDB = "prelay"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-only-secret"
	}
	if c.PingIntervalSec <= 0 {
		c.PingIntervalSec = 30
	}
	if c.RingTimeoutSec <= 0 {
		c.RingTimeoutSec = 45
	}
}

// Load reads the yaml file at path (ignored when empty), applies env
// overrides and defaults.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if v := os.Getenv("RELAY_NODE_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NodeID = n
		}
	}
	if v := os.Getenv("RELAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("RELAY_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("RELAY_MONGO_DB"); v != "" {
		cfg.MongoDB = v
	}
	if v := os.Getenv("RELAY_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("RELAY_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("RELAY_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}

	cfg.norm()
	return cfg, nil
}
