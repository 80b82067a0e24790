package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

type envTestConfig struct {
	Port int `env:"DELPHI_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("DELPHI_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DELPHI_DB", "/tmp/runs.db")
	t.Setenv("DELPHI_SCORER_TIMEOUT", "250ms")
	t.Setenv("DELPHI_CONCURRENCY", "8")

	e, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if e.DBPath != "/tmp/runs.db" || e.ScorerTimeout != 250*time.Millisecond || e.Concurrency != 8 {
		t.Errorf("unexpected env: %+v", e)
	}
	if e.ScorerAddr != "localhost:50051" {
		t.Errorf("expected default scorer address, got %q", e.ScorerAddr)
	}
}

func TestLoadEnv_BadConcurrency(t *testing.T) {
	t.Setenv("DELPHI_CONCURRENCY", "0")
	if _, err := LoadEnv(); err == nil {
		t.Fatal("expected error for zero concurrency")
	}
}

func TestLoadProfile_Defaults(t *testing.T) {
	cfg, err := LoadProfile("")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	def := trajectory.DefaultConfig()
	if cfg.Seed != def.Seed || cfg.MaxSteps != def.MaxSteps || cfg.MaxAgeYears != def.MaxAgeYears || cfg.NoRepeat != def.NoRepeat {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadProfile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := "seed: 7\nmax_steps: 20\nno_repeat: false\nignore_tokens: [3, 4]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if cfg.Seed != 7 || cfg.MaxSteps != 20 || cfg.NoRepeat {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxAgeYears != 30 {
		t.Errorf("expected default window, got %v", cfg.MaxAgeYears)
	}
	if len(cfg.TerminationTokens) != 1 || cfg.TerminationTokens[0] != trajectory.DeathToken {
		t.Errorf("expected default termination tokens, got %v", cfg.TerminationTokens)
	}
	if len(cfg.IgnoreTokens) != 2 || cfg.IgnoreTokens[1] != vocab.Token(4) {
		t.Errorf("unexpected ignore tokens: %v", cfg.IgnoreTokens)
	}
}

func TestLoadProfile_Errors(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("max_steps: [oops\n"), 0o644)
	if _, err := LoadProfile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestWriteProfile_RoundTrip(t *testing.T) {
	cfg := trajectory.DefaultConfig()
	cfg.Seed = 99
	cfg.IgnoreTokens = []vocab.Token{12}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := WriteProfile(path, cfg); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}
	got, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got.Seed != 99 || len(got.IgnoreTokens) != 1 || got.IgnoreTokens[0] != 12 {
		t.Errorf("round trip lost fields: %+v", got)
	}
}
