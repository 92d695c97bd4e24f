package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoaderErrorType classifies a failure that occurred while resolving or
// reading a configuration file, as distinct from a ConfigError raised by
// Validate.
type LoaderErrorType string

const (
	LoaderErrNotFound LoaderErrorType = "not_found"
	LoaderErrRead     LoaderErrorType = "read_error"
	LoaderErrParse    LoaderErrorType = "parse_error"
)

// LoaderError wraps a failure encountered while loading a config file
// from disk.
type LoaderError struct {
	Type    LoaderErrorType
	Path    string
	Message string
	Cause   error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("config loader: %s: %s (%s)", e.Path, e.Message, e.Type)
}

func (e *LoaderError) Unwrap() error { return e.Cause }

// Loader resolves and parses YAML configuration files relative to a base
// path.
type Loader struct {
	basePath string
}

// NewLoader constructs a Loader rooted at basePath.
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.basePath, path)
}

// Load reads path, expands environment variable references, unmarshals it
// as a Config, applies defaults, and validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	resolved := l.resolve(path)
	raw, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoaderError{Type: LoaderErrNotFound, Path: resolved, Message: "file does not exist", Cause: err}
		}
		return nil, &LoaderError{Type: LoaderErrRead, Path: resolved, Message: "read failed", Cause: err}
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, &LoaderError{Type: LoaderErrParse, Path: resolved, Message: "yaml parse failed", Cause: err}
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
