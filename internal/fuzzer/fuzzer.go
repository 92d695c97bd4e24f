// Package fuzzer implements the protocol fuzzer: per-host probing of
// RTSP streams, snapshot endpoints, configuration-disclosure paths, and
// admin/debug endpoints, with per-IP RTSP owner election so duplicate
// fingerprint records for the same camera don't double up on RTSP work.
package fuzzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/0xDexFi/veilcams/internal/ai"
	"github.com/0xDexFi/veilcams/internal/concurrency"
	"github.com/0xDexFi/veilcams/internal/domain"
	"github.com/0xDexFi/veilcams/internal/fingerprint"
	"github.com/0xDexFi/veilcams/internal/netutil"
)

const probeTimeout = 8 * time.Second
const rtspProbeTimeout = 5 * time.Second

var secretMarkers = regexp.MustCompile(`(?i)(password|passwd|secret|token|key)`)
var htmlMarkers = regexp.MustCompile(`(?i)^\s*(<!doctype|<html)`)

var rtspPrimaryPorts = map[int]bool{554: true, 8554: true, 8555: true, 10554: true}

// Fuzzer runs the Protocol Fuzzer activity.
type Fuzzer struct {
	HTTP        *netutil.Client
	RTSP        *netutil.RTSPClient
	RateLimiter *concurrency.RateLimiter

	AI                *ai.Client
	AIEnabled         bool
	MaxAIPathsPerHost int
}

// NewFuzzer constructs a Fuzzer. rps configures the shared rate limiter.
func NewFuzzer(rps int) *Fuzzer {
	return &Fuzzer{
		HTTP:        netutil.NewClient(),
		RTSP:        netutil.NewRTSPClient(rtspProbeTimeout),
		RateLimiter: concurrency.NewRateLimiter(rps),
	}
}

// Run probes every fingerprinted host, up to maxConcurrent in parallel.
func (f *Fuzzer) Run(ctx context.Context, targets []domain.FingerprintResult, maxConcurrent int) domain.FuzzerModuleResult {
	start := time.Now()
	owners := electRTSPOwners(targets)

	tasks := make([]concurrency.Task[[]domain.ProtocolFinding], len(targets))
	for i, fp := range targets {
		fp := fp
		isOwner := owners[fp.IP] == fp.Port
		tasks[i] = func() ([]domain.ProtocolFinding, error) {
			return f.probeHost(ctx, fp, isOwner), nil
		}
	}

	outcomes := concurrency.RunBounded(tasks, maxConcurrent)

	result := domain.FuzzerModuleResult{Duration: time.Since(start)}
	for _, o := range outcomes {
		result.Findings = append(result.Findings, o.Value...)
	}
	return result
}

// electRTSPOwners implements the per-IP RTSP owner-election rule:
// exactly one fingerprint record per IP performs RTSP fuzzing. Preference
// goes to a record whose own port is a known RTSP port; if none
// qualifies among the RTSP-advertising records for that IP, the first one
// encountered wins.
func electRTSPOwners(targets []domain.FingerprintResult) map[string]int {
	owners := map[string]int{}
	for _, fp := range targets {
		if !fp.HasProtocol(domain.ProtoRTSP) {
			continue
		}
		current, exists := owners[fp.IP]
		if !exists {
			owners[fp.IP] = fp.Port
			continue
		}
		if !rtspPrimaryPorts[current] && rtspPrimaryPorts[fp.Port] {
			owners[fp.IP] = fp.Port
		}
	}
	return owners
}

func (f *Fuzzer) probeHost(ctx context.Context, fp domain.FingerprintResult, isRTSPOwner bool) []domain.ProtocolFinding {
	var findings []domain.ProtocolFinding

	if fp.HasProtocol(domain.ProtoRTSP) && isRTSPOwner {
		findings = append(findings, f.probeRTSP(ctx, fp)...)
	}
	findings = append(findings, f.probeSnapshots(ctx, fp)...)
	findings = append(findings, f.probeConfigDisclosure(ctx, fp)...)
	findings = append(findings, f.probeAdminDebug(ctx, fp)...)
	if f.AIEnabled && f.AI != nil {
		findings = append(findings, f.probeAISuggested(ctx, fp)...)
	}
	return findings
}

// probeAISuggested fetches vendor/model-specific path suggestions from the
// AI probe gateway and records a finding for each one that answers 200;
// any other status is skipped. This is purely
// additive to the static path tables: a gateway error yields no findings
// for this host, never an aborted fuzzer run.
func (f *Fuzzer) probeAISuggested(ctx context.Context, fp domain.FingerprintResult) []domain.ProtocolFinding {
	limit := f.MaxAIPathsPerHost
	if limit <= 0 {
		limit = 5
	}
	suggestions, err := f.AI.SuggestPaths(ctx, ai.TargetInfo{
		IP: fp.IP, Port: fp.Port, Vendor: string(fp.Vendor), Model: fp.Model, Firmware: fp.Firmware,
	}, limit)
	if err != nil {
		return nil
	}

	var findings []domain.ProtocolFinding
	for _, sug := range suggestions {
		resp, err := f.get(ctx, fp, sug.Path)
		if err != nil || resp.Status == 404 {
			continue
		}
		if resp.Status == 200 {
			findings = append(findings, domain.ProtocolFinding{
				IP: fp.IP, Port: fp.Port, Type: domain.FindingUnauthAccess, Protocol: domain.ProtoHTTP,
				Path: sug.Path, Severity: domain.SeverityMedium, Description: sug.Description,
				Evidence: fmt.Sprintf("AI-suggested path returned %d", resp.Status), Authenticated: false, Timestamp: time.Now().UTC(),
			})
		}
	}
	return findings
}

func (f *Fuzzer) baseURL(fp domain.FingerprintResult) string {
	scheme := "http"
	if fp.Port == 443 || fp.Port == 8443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, fp.IP, fp.Port)
}

func mergedPaths(vendorPaths, genericPaths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range append(append([]string{}, vendorPaths...), genericPaths...) {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (f *Fuzzer) probeRTSP(ctx context.Context, fp domain.FingerprintResult) []domain.ProtocolFinding {
	var vendorPaths []string
	if sig, ok := fingerprint.ByVendor(fp.Vendor); ok {
		vendorPaths = sig.RTSPPaths
	}
	paths := mergedPaths(vendorPaths, fingerprint.GenericRTSPPaths)

	port := fp.Port
	if !rtspPrimaryPorts[port] {
		port = 554
	}

	var findings []domain.ProtocolFinding
	for _, path := range paths {
		if err := f.RateLimiter.Acquire(ctx); err != nil {
			break
		}
		reqCtx, cancel := context.WithTimeout(ctx, rtspProbeTimeout)
		resp, err := f.RTSP.Describe(reqCtx, fp.IP, port, path, "")
		cancel()
		if err != nil {
			continue
		}
		switch resp.StatusCode {
		case 200:
			findings = append(findings, domain.ProtocolFinding{
				IP: fp.IP, Port: port, Type: domain.FindingRTSPStream, Protocol: domain.ProtoRTSP,
				Path: path, Severity: domain.SeverityHigh, Description: "RTSP stream reachable without authentication",
				Evidence: "DESCRIBE returned 200 unauthenticated", Authenticated: false, Timestamp: time.Now().UTC(),
			})
		case 401:
			findings = append(findings, domain.ProtocolFinding{
				IP: fp.IP, Port: port, Type: domain.FindingRTSPStream, Protocol: domain.ProtoRTSP,
				Path: path, Severity: domain.SeverityInfo, Description: "RTSP stream exists, requires auth",
				Evidence: "DESCRIBE returned 401", Authenticated: true, Timestamp: time.Now().UTC(),
			})
		}
	}
	return findings
}

func (f *Fuzzer) probeSnapshots(ctx context.Context, fp domain.FingerprintResult) []domain.ProtocolFinding {
	if !fp.HasProtocol(domain.ProtoHTTP) && !fp.HasProtocol(domain.ProtoHTTPS) {
		return nil
	}
	var vendorPaths []string
	if sig, ok := fingerprint.ByVendor(fp.Vendor); ok {
		vendorPaths = sig.SnapshotPaths
	}
	paths := mergedPaths(vendorPaths, fingerprint.GenericSnapshotPaths)

	var findings []domain.ProtocolFinding
	for _, path := range paths {
		resp, err := f.get(ctx, fp, path)
		if err != nil {
			continue
		}
		ct := strings.ToLower(resp.Headers.Get("Content-Type"))
		if resp.Status == 200 && (strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "application/octet-stream")) {
			findings = append(findings, domain.ProtocolFinding{
				IP: fp.IP, Port: fp.Port, Type: domain.FindingSnapshotEndpoint, Protocol: domain.ProtoHTTP,
				Path: path, Severity: domain.SeverityMedium, Description: "unauthenticated snapshot image endpoint",
				Evidence: fmt.Sprintf("content-type %s", ct), Authenticated: false, Timestamp: time.Now().UTC(),
			})
		}
	}
	return findings
}

func (f *Fuzzer) probeConfigDisclosure(ctx context.Context, fp domain.FingerprintResult) []domain.ProtocolFinding {
	if !fp.HasProtocol(domain.ProtoHTTP) && !fp.HasProtocol(domain.ProtoHTTPS) {
		return nil
	}
	var findings []domain.ProtocolFinding
	for _, path := range fingerprint.ConfigDisclosurePaths {
		resp, err := f.get(ctx, fp, path)
		if err != nil {
			continue
		}
		if resp.Status != 200 || len(resp.Body) <= 20 {
			continue
		}
		bodyStr := string(resp.Body)
		if htmlMarkers.MatchString(bodyStr) {
			continue
		}

		severity := domain.SeverityHigh
		if secretMarkers.MatchString(bodyStr) {
			severity = domain.SeverityCritical
		}
		findings = append(findings, domain.ProtocolFinding{
			IP: fp.IP, Port: fp.Port, Type: domain.FindingConfigDisclosure, Protocol: domain.ProtoHTTP,
			Path: path, Severity: severity, Description: "configuration file disclosed without authentication",
			Evidence: fmt.Sprintf("%d bytes returned", len(resp.Body)), Authenticated: false, Timestamp: time.Now().UTC(),
		})
	}
	return findings
}

func (f *Fuzzer) probeAdminDebug(ctx context.Context, fp domain.FingerprintResult) []domain.ProtocolFinding {
	if !fp.HasProtocol(domain.ProtoHTTP) && !fp.HasProtocol(domain.ProtoHTTPS) {
		return nil
	}
	var findings []domain.ProtocolFinding
	for _, path := range fingerprint.AdminDebugPaths {
		resp, err := f.get(ctx, fp, path)
		if err != nil {
			continue
		}
		if resp.Status == 200 && len(resp.Body) > 50 {
			findings = append(findings, domain.ProtocolFinding{
				IP: fp.IP, Port: fp.Port, Type: domain.FindingUnauthAccess, Protocol: domain.ProtoHTTP,
				Path: path, Severity: domain.SeverityMedium, Description: "admin/debug endpoint reachable without authentication",
				Evidence: fmt.Sprintf("%d bytes returned", len(resp.Body)), Authenticated: false, Timestamp: time.Now().UTC(),
			})
		}
	}
	return findings
}

func (f *Fuzzer) get(ctx context.Context, fp domain.FingerprintResult, path string) (*netutil.Response, error) {
	if err := f.RateLimiter.Acquire(ctx); err != nil {
		return nil, err
	}
	url := f.baseURL(fp) + path
	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return f.HTTP.Get(reqCtx, url, netutil.RequestOptions{Timeout: probeTimeout, FollowRedirects: false})
}
