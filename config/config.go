package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // meetsum
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Rooms struct {
	SignalRetention string `yaml:"signalRetention"` // duration, default 10m
	SignalQueueMax  int    `yaml:"signalQueueMax"`  // per-sender mailbox cap
	ChatCap         int    `yaml:"chatCap"`         // messages kept per room
	ChatWindow      string `yaml:"chatWindow"`      // duration, default 24h
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	Logging Logging `yaml:"logging"`
	Rooms   Rooms   `yaml:"rooms"`
}

// LoadConfig reads the yaml file at CONFIG_PATH (default
// ./config/config.yaml). A .env file, when present, seeds the
// environment first so CONFIG_PATH itself can live there.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "meetsum"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

// SignalRetention parses the configured retention, zero when unset so
// the store applies its own default.
func (c *Config) SignalRetention() time.Duration {
	return parseDurationOr(0, c.Rooms.SignalRetention)
}

func (c *Config) ChatWindow() time.Duration {
	return parseDurationOr(0, c.Rooms.ChatWindow)
}

func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
