package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const ServiceName = "batch-allocation"

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr        string        `env:"GRPC_ADDR" envDefault:":50051"`
	DBDriver        string        `env:"DB_DRIVER" envDefault:"sqlite"`
	MySQLDSN        string        `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/allocation"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"allocation.db"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	OtelEndpoint    string        `env:"OTEL_ENDPOINT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want sqlite or mysql", c.DBDriver)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT %s", c.ShutdownTimeout)
	}
	return nil
}

// DSN returns the data source name of the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "mysql" {
		return c.MySQLDSN
	}
	return c.SQLitePath
}
