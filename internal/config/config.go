package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Server    Server
	Store     Store
	Kafka     Kafka
	Match     Match
	Scheduler Scheduler
	Log       Log
}

type Server struct {
	Port           string   `envconfig:"PORT" default:"8080"`
	AllowedOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

type Store struct {
	Backend     string        `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	RedisURL    string        `envconfig:"REDIS_URL"`
	Expiry      time.Duration `envconfig:"MATCH_EXPIRY" default:"120h"`
}

type Kafka struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"true"`
}

type Match struct {
	StartingScore int `envconfig:"DEFAULT_STARTING_SCORE" default:"501"`
	LegsToWin     int `envconfig:"DEFAULT_LEGS_TO_WIN" default:"3"`
}

type Scheduler struct {
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	EvictInterval time.Duration `envconfig:"EVICT_INTERVAL" default:"5m"`
	IdleTimeout   time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"2h"`
}

type Log struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

func New() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", StorePostgres)
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s store", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Match.LegsToWin < 1 || c.Match.LegsToWin > 20 {
		return fmt.Errorf("DEFAULT_LEGS_TO_WIN must be between 1 and 20, got %d", c.Match.LegsToWin)
	}
	if c.Match.StartingScore <= 0 {
		return fmt.Errorf("DEFAULT_STARTING_SCORE must be positive, got %d", c.Match.StartingScore)
	}
	if c.Store.Expiry <= 0 {
		return fmt.Errorf("MATCH_EXPIRY must be positive, got %s", c.Store.Expiry)
	}
	return nil
}
