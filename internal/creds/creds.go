// Package creds implements the credential tester: per-host ordered
// credential enumeration against the detected auth flow, gated by
// baseline-differential validation so that hosts serving identical
// content with and without credentials never register a false positive.
package creds

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/0xDexFi/veilcams/internal/concurrency"
	"github.com/0xDexFi/veilcams/internal/domain"
	"github.com/0xDexFi/veilcams/internal/fingerprint"
	"github.com/0xDexFi/veilcams/internal/netutil"
)

const (
	httpTimeout = 8 * time.Second
	rtspTimeout = 5 * time.Second
)

var postLoginMarkers = []string{"logout", "sign-out", "dashboard", "welcome", "session", "authenticated", "token"}

var rtspPrimaryPorts = map[int]bool{554: true, 8554: true, 8555: true, 10554: true}

var (
	negativeFormMarkers = regexp.MustCompile(`(?i)(error|fail|invalid|wrong|denied)`)
	positiveFormMarkers = regexp.MustCompile(`(?i)(success|ok|true|token|session)`)

	positiveJSONMarkers = regexp.MustCompile(`(?i)("success"\s*:\s*true|"statusvalue"\s*:\s*200|"result"\s*:\s*true|"authorized"\s*:\s*true|token|sessionid)`)
	negativeJSONMarkers = regexp.MustCompile(`(?i)("success"\s*:\s*false|"result"\s*:\s*false|error|invalid|denied|fail)`)
)

// baselineEntry caches an unauthenticated GET of a base URL.
type baselineEntry struct {
	status int
	body   string
	err    error
}

// Tester runs the Credential Tester activity for a set of hosts.
type Tester struct {
	HTTP               *netutil.Client
	RTSP               *netutil.RTSPClient
	RateLimiter        *concurrency.RateLimiter
	AttemptDelay       time.Duration
	MaxAttemptsPerHost int
	UseDefaults        bool
	Custom             []domain.Credential

	baselines  map[string]baselineEntry
	rtspUnauth map[string]bool // key ip:port:path -> true if unauth DESCRIBE was 200
}

// NewTester constructs a Tester. rps configures the shared per-host rate
// limiter; the two in-memory caches are scoped to this Tester instance,
// i.e. to one activity invocation.
func NewTester(rps int, attemptDelay time.Duration, maxAttemptsPerHost int, useDefaults bool, custom []domain.Credential) *Tester {
	return &Tester{
		HTTP:               netutil.NewClient(),
		RTSP:               netutil.NewRTSPClient(rtspTimeout),
		RateLimiter:        concurrency.NewRateLimiter(rps),
		AttemptDelay:       attemptDelay,
		MaxAttemptsPerHost: maxAttemptsPerHost,
		UseDefaults:        useDefaults,
		Custom:             custom,
		baselines:          map[string]baselineEntry{},
		rtspUnauth:         map[string]bool{},
	}
}

// Run tests credentials against every fingerprinted host, up to
// maxConcurrent hosts in parallel. Attempts against a single host are
// strictly serial and ordered vendor-defaults -> generic -> custom.
func (t *Tester) Run(ctx context.Context, targets []domain.FingerprintResult, maxConcurrent int) domain.CredentialModuleResult {
	start := time.Now()

	tasks := make([]concurrency.Task[[]domain.CredentialTestResult], len(targets))
	for i, fp := range targets {
		fp := fp
		tasks[i] = func() ([]domain.CredentialTestResult, error) {
			return t.testHost(ctx, fp), nil
		}
	}

	outcomes := concurrency.RunBounded(tasks, maxConcurrent)

	result := domain.CredentialModuleResult{Duration: time.Since(start)}
	compromised := map[string]bool{}
	for _, o := range outcomes {
		for _, r := range o.Value {
			result.Attempts++
			result.Results = append(result.Results, r)
			if r.Success {
				result.SuccessfulLogins++
				compromised[domain.DiscoveredHost{IP: r.IP, Port: r.Port}.Key()] = true
			}
		}
	}
	for k := range compromised {
		result.CompromisedHosts = append(result.CompromisedHosts, k)
	}
	return result
}

// buildCredentialList constructs the ordered, deduplicated credential
// list for one host: vendor-specific defaults first, then generic
// defaults (the only defaults when the vendor is unknown), then
// caller-supplied custom credentials.
func (t *Tester) buildCredentialList(vendor domain.Vendor) []domain.Credential {
	var ordered []domain.Credential
	seen := map[string]bool{}
	add := func(c domain.Credential) {
		k := c.DedupKey()
		if seen[k] {
			return
		}
		seen[k] = true
		ordered = append(ordered, c)
	}

	if t.UseDefaults {
		if sig, ok := fingerprint.ByVendor(vendor); ok {
			for _, c := range sig.DefaultCredentials {
				add(c)
			}
		}
		for _, c := range fingerprint.GenericDefaults {
			add(c)
		}
	}
	for _, c := range t.Custom {
		add(c)
	}
	return ordered
}

func (t *Tester) testHost(ctx context.Context, fp domain.FingerprintResult) []domain.CredentialTestResult {
	creds := t.buildCredentialList(fp.Vendor)
	var results []domain.CredentialTestResult

	attempts := 0
	for _, cred := range creds {
		if t.MaxAttemptsPerHost > 0 && attempts >= t.MaxAttemptsPerHost {
			break
		}

		res := t.attempt(ctx, fp, cred)
		if len(res) == 0 {
			continue
		}
		attempts++
		results = append(results, res...)

		success := false
		for _, r := range res {
			if r.Success {
				success = true
				break
			}
		}
		if success {
			break
		}
		if t.AttemptDelay > 0 {
			time.Sleep(t.AttemptDelay)
		}
	}
	return results
}

// attempt dispatches one credential against every protocol the host
// supports. A host classified as HTTP that also answers RTSP OPTIONS on
// its primary port (fingerprint.go's probeRTSPSecondary) must still get
// its real HTTP auth type tested, so RTSP and the HTTP/Form/None switch
// are independent branches here, not alternatives: both run and both
// contribute a result, and it is testHost's job to stop the credential
// loop the moment any one of them reports success.
func (t *Tester) attempt(ctx context.Context, fp domain.FingerprintResult, cred domain.Credential) []domain.CredentialTestResult {
	if err := t.RateLimiter.Acquire(ctx); err != nil {
		return nil
	}

	var results []domain.CredentialTestResult

	if fp.HasProtocol(domain.ProtoRTSP) {
		if res, applicable := t.attemptRTSP(ctx, fp, cred); applicable {
			results = append(results, res)
		}
	}

	switch fp.AuthType {
	case domain.AuthBasic, domain.AuthDigest:
		results = append(results, t.attemptHTTPAuth(ctx, fp, cred))
	case domain.AuthForm:
		results = append(results, t.attemptForm(ctx, fp, cred))
	case domain.AuthNone:
		results = append(results, t.attemptNoneAuth(ctx, fp, cred))
	}

	return results
}

func (t *Tester) baseURL(fp domain.FingerprintResult) string {
	scheme := "http"
	if fp.Port == 443 || fp.Port == 8443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, fp.IP, fp.Port)
}

// baseline fetches (and caches) the unauthenticated response for a base
// URL's root.
func (t *Tester) baseline(ctx context.Context, base string) baselineEntry {
	if b, ok := t.baselines[base]; ok {
		return b
	}
	reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()
	resp, err := t.HTTP.Get(reqCtx, base+"/", netutil.RequestOptions{Timeout: httpTimeout})
	var b baselineEntry
	if err != nil {
		b = baselineEntry{err: err}
	} else {
		b = baselineEntry{status: resp.Status, body: string(resp.Body)}
	}
	t.baselines[base] = b
	return b
}

// isDifferent is the baseline-differential validation rule set, applied
// verbatim: a credentialed response is a genuine success only if it
// differs meaningfully from the unauthenticated baseline.
func isDifferent(baseline baselineEntry, authedStatus int, authedBody string) bool {
	if baseline.err != nil {
		return authedStatus >= 200 && authedStatus < 400
	}

	if (baseline.status == 401 || baseline.status == 403) && authedStatus >= 200 && authedStatus < 400 {
		return true
	}

	if authedStatus >= 200 && authedStatus < 400 && baseline.status >= 400 {
		return true
	}

	if baseline.status == authedStatus {
		if baseline.body == authedBody {
			return false
		}
		maxLen := len(baseline.body)
		if len(authedBody) > maxLen {
			maxLen = len(authedBody)
		}
		if maxLen == 0 {
			return false
		}
		diff := absInt(len(authedBody) - len(baseline.body))
		pct := float64(diff) / float64(maxLen)

		if pct < 0.10 {
			return hasNewPostLoginMarker(baseline.body, authedBody)
		}
		return true
	}

	return false
}

func hasNewPostLoginMarker(baselineBody, authedBody string) bool {
	lowerBaseline := strings.ToLower(baselineBody)
	lowerAuthed := strings.ToLower(authedBody)
	for _, marker := range postLoginMarkers {
		if strings.Contains(lowerAuthed, marker) && !strings.Contains(lowerBaseline, marker) {
			return true
		}
	}
	return false
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (t *Tester) attemptHTTPAuth(ctx context.Context, fp domain.FingerprintResult, cred domain.Credential) domain.CredentialTestResult {
	base := t.baseURL(fp)
	baseline := t.baseline(ctx, base)

	result := domain.CredentialTestResult{IP: fp.IP, Port: fp.Port, Vendor: fp.Vendor, Protocol: domain.ProtoHTTP, Credential: cred, Timestamp: time.Now().UTC()}
	if fp.Port == 443 || fp.Port == 8443 {
		result.Protocol = domain.ProtoHTTPS
	}

	reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	var resp *netutil.Response
	var err error
	evidenceScheme := "basic"

	if fp.AuthType == domain.AuthDigest {
		evidenceScheme = "digest"
		resp, err = t.digestGet(reqCtx, base+"/", cred, baseline)
	} else {
		resp, err = t.HTTP.Get(reqCtx, base+"/", netutil.RequestOptions{
			Timeout:       httpTimeout,
			HasBasicAuth:  true,
			BasicAuthUser: cred.Username,
			BasicAuthPass: cred.Password,
		})
	}

	if err != nil {
		result.Evidence = fmt.Sprintf("%s auth attempt failed: %v", evidenceScheme, err)
		return result
	}

	result.ResponseCode = resp.Status
	if isDifferent(baseline, resp.Status, string(resp.Body)) {
		result.Success = true
		result.Evidence = fmt.Sprintf("%s auth succeeded: baseline status %d differs from authenticated status %d", evidenceScheme, baseline.status, resp.Status)
		return result
	}
	if baseline.status == resp.Status && baseline.body == string(resp.Body) {
		result.Evidence = fmt.Sprintf("%s response identical to baseline", evidenceScheme)
	} else {
		result.Evidence = fmt.Sprintf("%s response not meaningfully different from baseline", evidenceScheme)
	}
	return result
}

// digestGet performs one GET with a computed Digest Authorization header.
// The digest challenge always comes from a fresh unauthenticated GET of
// url (baselineEntry keeps no headers, so baseline is not consulted); if
// that response carries no parseable Digest challenge it is returned as is.
func (t *Tester) digestGet(ctx context.Context, url string, cred domain.Credential, baseline baselineEntry) (*netutil.Response, error) {
	challengeResp, err := t.HTTP.Get(ctx, url, netutil.RequestOptions{Timeout: httpTimeout})
	if err != nil {
		return nil, err
	}
	wa := challengeResp.Headers.Get("WWW-Authenticate")
	if !netutil.IsDigest(wa) {
		return challengeResp, nil
	}
	challenge, err := netutil.ParseWWWAuthenticate(wa)
	if err != nil {
		return challengeResp, nil
	}

	header := netutil.BuildDigestHeader(netutil.DigestParams{
		Username:  cred.Username,
		Password:  cred.Password,
		Method:    "GET",
		URI:       "/",
		Challenge: challenge,
	})

	return t.HTTP.Do(ctx, "GET", url, nil, netutil.RequestOptions{
		Timeout: httpTimeout,
		Headers: map[string]string{"Authorization": header},
	})
}

func (t *Tester) attemptForm(ctx context.Context, fp domain.FingerprintResult, cred domain.Credential) domain.CredentialTestResult {
	result := domain.CredentialTestResult{IP: fp.IP, Port: fp.Port, Vendor: fp.Vendor, Protocol: domain.ProtoHTTP, Credential: cred, Timestamp: time.Now().UTC()}

	endpoints := fingerprint.GenericLoginEndpoints
	if sig, ok := fingerprint.ByVendor(fp.Vendor); ok && len(sig.LoginEndpoints) > 0 {
		endpoints = sig.LoginEndpoints
	}

	body := fmt.Sprintf(`{"userName":"%s","password":"%s"}`, cred.Username, cred.Password)

	for _, ep := range endpoints {
		url := t.baseURL(fp) + ep
		reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
		resp, err := t.HTTP.Do(reqCtx, "POST", url, []byte(body), netutil.RequestOptions{Timeout: httpTimeout, ContentType: "application/json"})
		cancel()
		if err != nil {
			continue
		}
		result.ResponseCode = resp.Status
		bodyStr := string(resp.Body)
		if resp.Status == 200 && !negativeFormMarkers.MatchString(bodyStr) &&
			(positiveFormMarkers.MatchString(bodyStr) || len(bodyStr) > 100) {
			result.Success = true
			result.Evidence = fmt.Sprintf("form auth succeeded at %s", ep)
			return result
		}
	}
	result.Evidence = "form auth did not produce a positive result on any login endpoint"
	return result
}

// attemptNoneAuth handles the AuthType=none case: Basic auth on root is
// meaningless when root already answers unauthenticated, so this POSTs
// vendor-specific login endpoints and accepts only explicit positive
// markers with no negative markers in the same body.
func (t *Tester) attemptNoneAuth(ctx context.Context, fp domain.FingerprintResult, cred domain.Credential) domain.CredentialTestResult {
	result := domain.CredentialTestResult{IP: fp.IP, Port: fp.Port, Vendor: fp.Vendor, Protocol: domain.ProtoHTTP, Credential: cred, Timestamp: time.Now().UTC()}

	sig, ok := fingerprint.ByVendor(fp.Vendor)
	if !ok || len(sig.LoginEndpoints) == 0 {
		result.Evidence = "no vendor-specific login endpoint known for auth-type none"
		return result
	}

	body := fmt.Sprintf(`{"userName":"%s","password":"%s","username":"%s"}`, cred.Username, cred.Password, cred.Username)

	for _, ep := range sig.LoginEndpoints {
		url := t.baseURL(fp) + ep
		reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
		resp, err := t.HTTP.Do(reqCtx, "POST", url, []byte(body), netutil.RequestOptions{Timeout: httpTimeout, ContentType: "application/json"})
		cancel()
		if err != nil {
			continue
		}
		result.ResponseCode = resp.Status
		bodyStr := string(resp.Body)
		if positiveJSONMarkers.MatchString(bodyStr) && !negativeJSONMarkers.MatchString(bodyStr) {
			result.Success = true
			result.Evidence = fmt.Sprintf("explicit positive marker at %s with no negative marker present", ep)
			return result
		}
	}
	result.Evidence = "no explicit positive marker found on any vendor login endpoint"
	return result
}

// attemptRTSP tests one credential against the host's first RTSP path,
// dialing the host's own port when it is itself a primary RTSP port and
// falling back to 554 otherwise — the same rule fuzzer.go's owner
// election and cve/probes.go's probeGenericUnauthRTSP apply, needed here
// because fingerprint.go's probeRTSPSecondary tags an HTTP-classified
// host (Port still its HTTP port) with ProtoRTSP whenever 554 answers
// OPTIONS. It first caches an unauthenticated DESCRIBE per (ip, rtspPort,
// path); if that already succeeds, credential testing is not applicable
// at all — the real finding belongs to the protocol fuzzer — and this
// returns applicable=false so the caller skips it without treating it as
// an attempt.
func (t *Tester) attemptRTSP(ctx context.Context, fp domain.FingerprintResult, cred domain.Credential) (domain.CredentialTestResult, bool) {
	port := fp.Port
	if !rtspPrimaryPorts[port] {
		port = 554
	}
	path := rtspPathFor(fp.Vendor)
	cacheKey := fmt.Sprintf("%s:%d:%s", fp.IP, port, path)

	if unauth, cached := t.rtspUnauth[cacheKey]; !cached {
		reqCtx, cancel := context.WithTimeout(ctx, rtspTimeout)
		resp, err := t.RTSP.Describe(reqCtx, fp.IP, port, path, "")
		cancel()
		unauth = err == nil && resp.StatusCode == 200
		t.rtspUnauth[cacheKey] = unauth
	}

	result := domain.CredentialTestResult{IP: fp.IP, Port: port, Vendor: fp.Vendor, Protocol: domain.ProtoRTSP, Credential: cred, Timestamp: time.Now().UTC()}

	if t.rtspUnauth[cacheKey] {
		return result, false
	}

	basicAuth := base64.StdEncoding.EncodeToString([]byte(cred.Username + ":" + cred.Password))
	reqCtx, cancel := context.WithTimeout(ctx, rtspTimeout)
	resp, err := t.RTSP.Describe(reqCtx, fp.IP, port, path, basicAuth)
	cancel()
	if err != nil {
		result.Evidence = fmt.Sprintf("rtsp describe failed: %v", err)
		return result, true
	}

	result.ResponseCode = resp.StatusCode
	if resp.StatusCode == 200 {
		result.Success = true
		result.Evidence = "credentialed DESCRIBE succeeded where unauthenticated DESCRIBE was denied"
	} else {
		result.Evidence = fmt.Sprintf("credentialed DESCRIBE returned %d", resp.StatusCode)
	}
	return result, true
}

func rtspPathFor(vendor domain.Vendor) string {
	if sig, ok := fingerprint.ByVendor(vendor); ok && len(sig.RTSPPaths) > 0 {
		return sig.RTSPPaths[0]
	}
	return fingerprint.GenericRTSPPaths[0]
}
