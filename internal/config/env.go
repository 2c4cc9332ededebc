package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the process level configuration read from the environment.
type Env struct {
	DataDir  string `env:"ODEGUARD_DATA_DIR"  envDefault:"./runs"`
	LogLevel string `env:"ODEGUARD_LOG_LEVEL" envDefault:"info"`
	Verbose  bool   `env:"ODEGUARD_VERBOSE"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
