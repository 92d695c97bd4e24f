package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config file: %v", err)
	}
	return path
}

func TestLoaderLoadAppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "assess.yaml", `
targets:
  - host: 10.0.0.5
credentials:
  use_defaults: true
`)

	cfg, err := NewLoader(dir).Load("assess.yaml")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Host != "10.0.0.5" {
		t.Fatalf("Targets = %+v, want one host target", cfg.Targets)
	}
	if cfg.RateLimiting.MaxConcurrentHosts != 10 {
		t.Errorf("MaxConcurrentHosts = %d, want default 10", cfg.RateLimiting.MaxConcurrentHosts)
	}
	if cfg.Reporting.Format != "markdown" {
		t.Errorf("Format = %q, want default markdown", cfg.Reporting.Format)
	}
}

func TestLoaderLoadExpandsEnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VEILCAMS_TEST_TARGET", "192.168.50.10")
	writeConfigFile(t, dir, "assess.yaml", `
targets:
  - host: ${VEILCAMS_TEST_TARGET}
`)

	cfg, err := NewLoader(dir).Load("assess.yaml")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Targets[0].Host != "192.168.50.10" {
		t.Errorf("Host = %q, want env-expanded value", cfg.Targets[0].Host)
	}
}

func TestLoaderLoadReturnsValidationError(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "assess.yaml", "targets: []\n")

	_, err := NewLoader(dir).Load("assess.yaml")
	if err == nil {
		t.Fatal("expected a validation error for an empty targets list")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("got %T, want *ConfigError", err)
	}
}

func TestLoaderLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLoader(dir).Load("does-not-exist.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	lerr, ok := err.(*LoaderError)
	if !ok {
		t.Fatalf("got %T, want *LoaderError", err)
	}
	if lerr.Type != LoaderErrNotFound {
		t.Errorf("Type = %v, want %v", lerr.Type, LoaderErrNotFound)
	}
}

func TestLoaderLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "assess.yaml", "targets: [this is not valid yaml: :::\n")

	_, err := NewLoader(dir).Load("assess.yaml")
	if err == nil {
		t.Fatal("expected a parse error for malformed yaml")
	}
	lerr, ok := err.(*LoaderError)
	if !ok {
		t.Fatalf("got %T, want *LoaderError", err)
	}
	if lerr.Type != LoaderErrParse {
		t.Errorf("Type = %v, want %v", lerr.Type, LoaderErrParse)
	}
}

func TestLoaderResolvesRelativeToBasePath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "configs")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfigFile(t, sub, "assess.yaml", "targets:\n  - cidr: 10.0.0.0/24\n")

	cfg, err := NewLoader(sub).Load("assess.yaml")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Targets[0].CIDR != "10.0.0.0/24" {
		t.Errorf("CIDR = %q, want 10.0.0.0/24", cfg.Targets[0].CIDR)
	}
}

func TestLoaderLoadAcceptsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	abs := writeConfigFile(t, dir, "assess.yaml", "targets:\n  - host: 10.0.0.9\n")

	cfg, err := NewLoader("/unused/base").Load(abs)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Targets[0].Host != "10.0.0.9" {
		t.Errorf("Host = %q, want 10.0.0.9", cfg.Targets[0].Host)
	}
}
