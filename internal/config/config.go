package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Addr    string `env:"HTTP_ADDR,default=:8000"`
	GinMode string `env:"GIN_MODE,default=debug"`
	AppEnv  string `env:"APP_ENV,default=development"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	return &cfg, nil
}

// Production reports whether the server should use production logging.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}
