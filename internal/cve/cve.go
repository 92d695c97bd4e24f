// Package cve implements the CVE scanner: a static registry of
// vulnerability checks dispatched per fingerprinted host by vendor match,
// plus an optional AI-backed dynamic check path.
package cve

import (
	"context"
	"time"

	"github.com/0xDexFi/veilcams/internal/ai"
	"github.com/0xDexFi/veilcams/internal/concurrency"
	"github.com/0xDexFi/veilcams/internal/domain"
)

// ProbeFunc runs one CVE check against a fingerprinted host. safeMode
// gates whether the probe may go beyond read-only existence checks and
// send its actual (non-destructive) confirmation payload.
type ProbeFunc func(ctx context.Context, target domain.FingerprintResult, safeMode bool) domain.CveTestResult

// Check is one immutable registry entry.
type Check struct {
	CveID            string
	Vendor           domain.Vendor // or "generic" to match every vendor
	Title            string
	Severity         domain.Severity
	Description      string
	AffectedModels   []string
	AffectedFirmware []string
	Category         string
	Probe            ProbeFunc
}

const genericVendor = domain.Vendor("generic")

// Registry is the static table of vulnerability checks. Every probe
// supports a safe_mode-gated read-only existence check; probeHikvision-
// CommandInjection additionally supports a non-safe-mode confirmation
// path that sends a harmless marker payload instead of asserting
// vulnerability from reachability alone.
var Registry = []Check{
	{
		CveID:    "CVE-2017-7921",
		Vendor:   domain.VendorHikvision,
		Title:    "Hikvision authentication bypass via crafted URL",
		Severity: domain.SeverityCritical,
		Description: "Certain Hikvision firmware versions allow unauthenticated access to " +
			"device configuration and user credentials via a crafted request to the ISAPI interface.",
		Category: "auth-bypass",
		Probe:    probeHikvisionAuthBypass,
	},
	{
		CveID:       "CVE-2021-36260",
		Vendor:      domain.VendorHikvision,
		Title:       "Hikvision command injection via web server",
		Severity:    domain.SeverityCritical,
		Description: "A command injection vulnerability in the Hikvision web server component allows remote code execution.",
		Category:    "rce",
		Probe:       probeHikvisionCommandInjection,
	},
	{
		CveID:       "CVE-2013-6117",
		Vendor:      domain.VendorDahua,
		Title:       "Dahua DVR/NVR backdoor authentication",
		Severity:    domain.SeverityCritical,
		Description: "Dahua devices expose a vendor backdoor service on a fixed port allowing credential retrieval.",
		Category:    "auth-bypass",
		Probe:       probeDahuaBackdoor,
	},
	{
		CveID:       "CVE-2020-9524",
		Vendor:      genericVendor,
		Title:       "Generic unauthenticated RTSP stream default-port exposure",
		Severity:    domain.SeverityMedium,
		Description: "Many consumer camera firmwares leave the default RTSP stream reachable without authentication.",
		Category:    "info-exposure",
		Probe:       probeGenericUnauthRTSP,
	},
}

// Scanner runs the CVE Scanner activity.
type Scanner struct {
	SafeMode     bool
	Categories   []string // empty = all
	AI           *ai.Client
	AIEnabled    bool
	MaxAIPerHost int
}

// NewScanner constructs a Scanner.
func NewScanner(safeMode bool, categories []string) *Scanner {
	return &Scanner{SafeMode: safeMode, Categories: categories}
}

func (s *Scanner) categoryAllowed(cat string) bool {
	if len(s.Categories) == 0 {
		return true
	}
	for _, c := range s.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Run executes the CVE registry against every fingerprinted host, up to
// maxConcurrent hosts in parallel.
func (s *Scanner) Run(ctx context.Context, targets []domain.FingerprintResult, maxConcurrent int) domain.CveModuleResult {
	start := time.Now()

	tasks := make([]concurrency.Task[[]domain.CveTestResult], len(targets))
	for i, fp := range targets {
		fp := fp
		tasks[i] = func() ([]domain.CveTestResult, error) {
			return s.scanHost(ctx, fp), nil
		}
	}

	outcomes := concurrency.RunBounded(tasks, maxConcurrent)

	result := domain.CveModuleResult{Duration: time.Since(start)}
	for _, o := range outcomes {
		for _, r := range o.Value {
			result.Results = append(result.Results, r)
			if r.Vulnerable {
				result.VulnerableCount++
			}
		}
	}
	return result
}

func (s *Scanner) scanHost(ctx context.Context, fp domain.FingerprintResult) []domain.CveTestResult {
	var results []domain.CveTestResult
	for _, check := range Registry {
		if check.Vendor != genericVendor && check.Vendor != fp.Vendor {
			continue
		}
		if !s.categoryAllowed(check.Category) {
			continue
		}
		results = append(results, check.Probe(ctx, fp, s.SafeMode))
	}

	if s.AIEnabled && s.AI != nil {
		results = append(results, s.runAIChecks(ctx, fp)...)
	}
	return results
}

// runAIChecks delegates to the AI probe gateway for dynamically generated
// checks, bounded to MaxAIPerHost. This is purely additive to the static
// registry and optional: a gateway error produces no results for this
// host, never an aborted scan.
func (s *Scanner) runAIChecks(ctx context.Context, fp domain.FingerprintResult) []domain.CveTestResult {
	limit := s.MaxAIPerHost
	if limit <= 0 {
		limit = 3
	}
	suggestions, err := s.AI.SuggestCVEChecks(ctx, ai.TargetInfo{
		IP: fp.IP, Port: fp.Port, Vendor: string(fp.Vendor), Model: fp.Model, Firmware: fp.Firmware,
	}, limit)
	if err != nil {
		return nil
	}

	var out []domain.CveTestResult
	for _, sug := range suggestions {
		out = append(out, domain.CveTestResult{
			CveID:      sug.CveID,
			IP:         fp.IP,
			Port:       fp.Port,
			Vendor:     fp.Vendor,
			Title:      sug.Title,
			Severity:   domain.Severity(sug.Severity),
			Vulnerable: sug.Vulnerable,
			Evidence:   sug.Evidence,
			Timestamp:  time.Now().UTC(),
		})
	}
	return out
}
