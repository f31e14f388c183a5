// Package config loads process environment and per-run evaluation configuration.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the process-level configuration read from environment variables.
// Empty DSNs select the in-memory stores.
type Env struct {
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`
	OutputDir     string `env:"EB_OUTPUT_DIR"   envDefault:"reports"`
	MetricsAddr   string `env:"EB_METRICS_ADDR" envDefault:":8080"`
	RunConfig     string `env:"EB_RUN_CONFIG"`
	Workers       int    `env:"EB_WORKERS"      envDefault:"0"`
}

// LoadEnv parses Env from the environment.
func LoadEnv() (Env, error) {
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, err
	}
	return cfg, nil
}

// ParseEnv parses environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
