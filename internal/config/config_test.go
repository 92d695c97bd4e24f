package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/0xDexFi/veilcams/internal/domain"
)

func TestValidateRequiresAtLeastOneTarget(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error when no targets are configured")
	}
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("got %T, want *ConfigError", err)
	}
	if cerr.Field != "targets" {
		t.Errorf("Field = %q, want targets", cerr.Field)
	}
}

func TestValidateTargetHostOrCIDRRequired(t *testing.T) {
	cfg := Config{Targets: []domain.TargetSpec{{}}}
	cfg.setDefaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for a target with neither host nor cidr")
	}
}

func TestValidateTargetHostAndCIDRMutuallyExclusive(t *testing.T) {
	cfg := Config{Targets: []domain.TargetSpec{{Host: "10.0.0.1", CIDR: "10.0.0.0/24"}}}
	cfg.setDefaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for a target specifying both host and cidr")
	}
}

func TestValidateAcceptsHostOnlyTarget(t *testing.T) {
	cfg := Config{Targets: []domain.TargetSpec{{Host: "10.0.0.1"}}}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateAcceptsCIDROnlyTarget(t *testing.T) {
	cfg := Config{Targets: []domain.TargetSpec{{CIDR: "10.0.0.0/24"}}}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateNegativeCredentialFieldsRejected(t *testing.T) {
	base := Config{Targets: []domain.TargetSpec{{Host: "10.0.0.1"}}}
	base.setDefaults()

	withAttempts := base
	withAttempts.Credentials.MaxAttemptsPerHost = -1
	if err := withAttempts.Validate(); err == nil {
		t.Error("expected error for negative MaxAttemptsPerHost")
	}

	withDelay := base
	withDelay.Credentials.DelayMs = -1
	if err := withDelay.Validate(); err == nil {
		t.Error("expected error for negative DelayMs")
	}
}

func TestValidateRateLimitingFieldsMustBePositive(t *testing.T) {
	base := Config{Targets: []domain.TargetSpec{{Host: "10.0.0.1"}}}
	base.setDefaults()

	withConcurrency := base
	withConcurrency.RateLimiting.MaxConcurrentHosts = 0
	if err := withConcurrency.Validate(); err == nil {
		t.Error("expected error for non-positive MaxConcurrentHosts")
	}

	withRate := base
	withRate.RateLimiting.RequestsPerSecond = -5
	if err := withRate.Validate(); err == nil {
		t.Error("expected error for non-positive RequestsPerSecond")
	}
}

func TestSetDefaultsOnlyFillsZeroValues(t *testing.T) {
	cfg := Config{
		Targets: []domain.TargetSpec{{Host: "10.0.0.1"}},
		Credentials: CredentialsConfig{
			MaxAttemptsPerHost: 7,
		},
		Reporting: ReportingConfig{
			Format: "json",
		},
	}
	cfg.setDefaults()

	if cfg.Credentials.MaxAttemptsPerHost != 7 {
		t.Errorf("MaxAttemptsPerHost = %d, want 7 (pre-set value must survive)", cfg.Credentials.MaxAttemptsPerHost)
	}
	if cfg.Reporting.Format != "json" {
		t.Errorf("Format = %q, want json (pre-set value must survive)", cfg.Reporting.Format)
	}

	if cfg.RateLimiting.MaxConcurrentHosts != 10 {
		t.Errorf("MaxConcurrentHosts = %d, want default 10", cfg.RateLimiting.MaxConcurrentHosts)
	}
	if cfg.RateLimiting.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %d, want default 5", cfg.RateLimiting.RequestsPerSecond)
	}
	if cfg.RateLimiting.TimeoutMs != 8000 {
		t.Errorf("TimeoutMs = %d, want default 8000", cfg.RateLimiting.TimeoutMs)
	}
	if cfg.Reporting.SeverityThreshold != "info" {
		t.Errorf("SeverityThreshold = %q, want default info", cfg.Reporting.SeverityThreshold)
	}
	if cfg.OutDir != "." {
		t.Errorf("OutDir = %q, want default .", cfg.OutDir)
	}
}

func TestSetDefaultsIsIdempotent(t *testing.T) {
	cfg := Config{Targets: []domain.TargetSpec{{Host: "10.0.0.1"}}}
	cfg.setDefaults()
	first := cfg
	cfg.setDefaults()
	if !reflect.DeepEqual(cfg, first) {
		t.Error("calling setDefaults twice must not change an already-defaulted config")
	}
}

func TestConfigErrorMessageFormatting(t *testing.T) {
	withField := &ConfigError{Type: ErrTypeInvalid, Field: "targets", Message: "at least one target required"}
	if !strings.Contains(withField.Error(), "targets") || !strings.Contains(withField.Error(), "at least one target required") {
		t.Errorf("Error() = %q, missing field or message", withField.Error())
	}

	withoutField := &ConfigError{Type: ErrTypeInvalid, Message: "bad config"}
	if !strings.Contains(withoutField.Error(), "bad config") {
		t.Errorf("Error() = %q, missing message", withoutField.Error())
	}
}

func TestNewInvalidProducesInvalidType(t *testing.T) {
	err := newInvalid("rate_limiting.requests_per_second", "must be positive")
	if err.Type != ErrTypeInvalid {
		t.Errorf("Type = %v, want %v", err.Type, ErrTypeInvalid)
	}
	if err.Field != "rate_limiting.requests_per_second" {
		t.Errorf("Field = %q", err.Field)
	}
}
