package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

var (
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrDatabaseURLMissing = errors.New("DATABASE_URL is required for the postgres driver")
)

// Config centraliza la configuración del servicio y del cliente de chat.
type Config struct {
	HTTPPort       string        `env:"HTTP_PORT" envDefault:"8080"`
	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"chat.db"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	ChatServerURL  string        `env:"CHAT_SERVER_URL" envDefault:"http://localhost:8080"`
	ReplyStepDelay time.Duration `env:"REPLY_STEP_DELAY" envDefault:"1s"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate verifica la combinación de driver y parámetros de conexión.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory, StoreDriverSQLite:
		return nil
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return ErrDatabaseURLMissing
		}
		return nil
	default:
		return ErrUnknownStoreDriver
	}
}
