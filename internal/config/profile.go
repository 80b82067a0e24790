package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// Profile is the YAML form of a trajectory.Config.
type Profile struct {
	Seed              uint32        `yaml:"seed"`
	MaxSteps          int           `yaml:"max_steps"`
	MaxAgeYears       float64       `yaml:"max_age_years"`
	NoRepeat          bool          `yaml:"no_repeat"`
	TerminationTokens []vocab.Token `yaml:"termination_tokens"`
	IgnoreTokens      []vocab.Token `yaml:"ignore_tokens"`
}

func profileFrom(c trajectory.Config) Profile {
	return Profile{
		Seed:              c.Seed,
		MaxSteps:          c.MaxSteps,
		MaxAgeYears:       c.MaxAgeYears,
		NoRepeat:          c.NoRepeat,
		TerminationTokens: c.TerminationTokens,
		IgnoreTokens:      c.IgnoreTokens,
	}
}

// Config converts the profile.
func (p Profile) Config() trajectory.Config {
	return trajectory.Config{
		Seed:              p.Seed,
		MaxSteps:          p.MaxSteps,
		MaxAgeYears:       p.MaxAgeYears,
		NoRepeat:          p.NoRepeat,
		TerminationTokens: p.TerminationTokens,
		IgnoreTokens:      p.IgnoreTokens,
	}
}

// LoadProfile reads a simulation profile. Keys the file omits keep their
// trajectory.DefaultConfig values; an empty path yields the defaults.
func LoadProfile(path string) (trajectory.Config, error) {
	p := profileFrom(trajectory.DefaultConfig())
	if path == "" {
		return p.Config(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return trajectory.Config{}, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return trajectory.Config{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p.Config(), nil
}

// WriteProfile writes cfg as YAML.
func WriteProfile(path string, cfg trajectory.Config) error {
	data, err := yaml.Marshal(profileFrom(cfg))
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
