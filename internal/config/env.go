// Package config loads process settings from the environment and the
// simulation profile from YAML.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds the settings shared by the command-line tools. Flags given on
// the command line take precedence.
type Env struct {
	DBPath        string        `env:"DELPHI_DB" envDefault:"delphi.db"`
	ScorerAddr    string        `env:"DELPHI_SCORER_ADDR" envDefault:"localhost:50051"`
	LabelsPath    string        `env:"DELPHI_LABELS" envDefault:"delphi_labels.json"`
	ScorerTimeout time.Duration `env:"DELPHI_SCORER_TIMEOUT" envDefault:"10s"`
	Concurrency   int           `env:"DELPHI_CONCURRENCY" envDefault:"4"`
	ProfilePath   string        `env:"DELPHI_PROFILE"`
	OTelEndpoint  string        `env:"DELPHI_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses an Env.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	if e.Concurrency < 1 {
		return Env{}, fmt.Errorf("parse env: DELPHI_CONCURRENCY must be positive, got %d", e.Concurrency)
	}
	return e, nil
}
