// Package config holds the validated configuration record consumed by the
// assessment pipeline and the YAML loader that produces it. Parsing YAML
// and resolving files on disk are ambient concerns; the pipeline itself
// only ever sees a validated *Config.
package config

import (
	"fmt"

	"github.com/0xDexFi/veilcams/internal/domain"
)

// ErrorType classifies a ConfigError for callers that want to branch on
// it without string matching.
type ErrorType string

const (
	ErrTypeInvalid ErrorType = "invalid_config"
	ErrTypeMissing ErrorType = "missing_field"
	ErrTypeParse   ErrorType = "parse_error"
)

// ConfigError is the sentinel error type for every configuration-load or
// validation failure. It is always non-retryable at the workflow level.
type ConfigError struct {
	Type    ErrorType
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s (%s): %s", e.Field, e.Type, e.Message)
	}
	return fmt.Sprintf("config: %s: %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func newInvalid(field, msg string) *ConfigError {
	return &ConfigError{Type: ErrTypeInvalid, Field: field, Message: msg}
}

// CredentialsConfig controls the Credential Tester.
type CredentialsConfig struct {
	UseDefaults        bool                `yaml:"use_defaults" json:"use_defaults"`
	Custom             []domain.Credential `yaml:"custom" json:"custom"`
	MaxAttemptsPerHost int                 `yaml:"max_attempts_per_host" json:"max_attempts_per_host"`
	DelayMs            int                 `yaml:"delay_ms" json:"delay_ms"`
}

// CveTestingConfig controls the CVE Scanner.
type CveTestingConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	SafeMode         bool     `yaml:"safe_mode" json:"safe_mode"`
	Categories       []string `yaml:"categories" json:"categories"`
	AIEnabled        bool     `yaml:"ai_enabled" json:"ai_enabled"`
	AIMaxCVEsPerHost int      `yaml:"ai_max_cves_per_host" json:"ai_max_cves_per_host"`
	AIGatewayAddr    string   `yaml:"ai_gateway_addr" json:"ai_gateway_addr"`
}

// ProtocolsConfig holds the protocol toggles and the Protocol Fuzzer's AI
// settings. Only the AI fields are read by the pipeline; the rtsp, onvif,
// http, telnet and ssh toggles are parsed but do not change what
// Fingerprinting or the fuzzer probe.
type ProtocolsConfig struct {
	RTSP              bool   `yaml:"rtsp" json:"rtsp"`
	ONVIF             bool   `yaml:"onvif" json:"onvif"`
	HTTP              bool   `yaml:"http" json:"http"`
	Telnet            bool   `yaml:"telnet" json:"telnet"`
	SSH               bool   `yaml:"ssh" json:"ssh"`
	AIEnabled         bool   `yaml:"ai_enabled" json:"ai_enabled"`
	AIMaxPathsPerHost int    `yaml:"ai_max_paths_per_host" json:"ai_max_paths_per_host"`
	AIGatewayAddr     string `yaml:"ai_gateway_addr" json:"ai_gateway_addr"`
}

// ExploitationConfig controls whether/how the external exploitation
// gateway is invoked once the CVE scanner reports a vulnerable host.
type ExploitationConfig struct {
	Enabled              bool   `yaml:"enabled" json:"enabled"`
	TimeoutPerExploit    int    `yaml:"timeout_per_exploit" json:"timeout_per_exploit"`
	AutoExploitConfirmed bool   `yaml:"auto_exploit_confirmed" json:"auto_exploit_confirmed"`
	GatewayAddr          string `yaml:"gateway_addr" json:"gateway_addr"`
}

// ReportingConfig is consumed by the external report formatter; the core
// only threads it through.
type ReportingConfig struct {
	Format            string `yaml:"format" json:"format"`
	IncludePOC        bool   `yaml:"include_poc" json:"include_poc"`
	SeverityThreshold string `yaml:"severity_threshold" json:"severity_threshold"`
}

// RateLimitingConfig bounds per-session concurrency and pacing.
type RateLimitingConfig struct {
	MaxConcurrentHosts int `yaml:"max_concurrent_hosts" json:"max_concurrent_hosts"`
	RequestsPerSecond  int `yaml:"requests_per_second" json:"requests_per_second"`
	TimeoutMs          int `yaml:"timeout_ms" json:"timeout_ms"`
}

// Config is the fully validated, defaulted configuration record the
// pipeline consumes.
type Config struct {
	Targets      []domain.TargetSpec `yaml:"targets" json:"targets"`
	Credentials  CredentialsConfig   `yaml:"credentials" json:"credentials"`
	CveTesting   CveTestingConfig    `yaml:"cve_testing" json:"cve_testing"`
	Protocols    ProtocolsConfig     `yaml:"protocols" json:"protocols"`
	Exploitation ExploitationConfig  `yaml:"exploitation" json:"exploitation"`
	Reporting    ReportingConfig     `yaml:"reporting" json:"reporting"`
	RateLimiting RateLimitingConfig  `yaml:"rate_limiting" json:"rate_limiting"`
	OutDir       string              `yaml:"out_dir" json:"out_dir"`
	SessionID    string              `yaml:"session_id" json:"session_id"`
}

// setDefaults fills in the zero-value defaults named throughout the
// component design sections.
func (c *Config) setDefaults() {
	if c.Credentials.MaxAttemptsPerHost == 0 {
		c.Credentials.MaxAttemptsPerHost = 20
	}
	if c.RateLimiting.MaxConcurrentHosts == 0 {
		c.RateLimiting.MaxConcurrentHosts = 10
	}
	if c.RateLimiting.RequestsPerSecond == 0 {
		c.RateLimiting.RequestsPerSecond = 5
	}
	if c.RateLimiting.TimeoutMs == 0 {
		c.RateLimiting.TimeoutMs = 8000
	}
	if c.Reporting.Format == "" {
		c.Reporting.Format = "markdown"
	}
	if c.Reporting.SeverityThreshold == "" {
		c.Reporting.SeverityThreshold = "info"
	}
	if c.OutDir == "" {
		c.OutDir = "."
	}
}

// Validate checks the record for internal consistency, returning a
// *ConfigError on the first violation found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return newInvalid("targets", "at least one target is required")
	}
	for i, t := range c.Targets {
		if t.Host == "" && t.CIDR == "" {
			return newInvalid(fmt.Sprintf("targets[%d]", i), "either host or cidr must be set")
		}
		if t.Host != "" && t.CIDR != "" {
			return newInvalid(fmt.Sprintf("targets[%d]", i), "host and cidr are mutually exclusive")
		}
	}
	if c.Credentials.MaxAttemptsPerHost < 0 {
		return newInvalid("credentials.max_attempts_per_host", "must be >= 0")
	}
	if c.Credentials.DelayMs < 0 {
		return newInvalid("credentials.delay_ms", "must be >= 0")
	}
	if c.RateLimiting.MaxConcurrentHosts <= 0 {
		return newInvalid("rate_limiting.max_concurrent_hosts", "must be > 0")
	}
	if c.RateLimiting.RequestsPerSecond <= 0 {
		return newInvalid("rate_limiting.requests_per_second", "must be > 0")
	}
	return nil
}
