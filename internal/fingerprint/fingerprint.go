// Package fingerprint identifies, per discovered host, the camera vendor,
// model, firmware, exposed protocols, and authentication scheme, using
// HTTP headers/body patterns, vendor-specific probe endpoints, RTSP
// banners, and ONVIF SOAP.
package fingerprint

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"github.com/0xDexFi/veilcams/internal/concurrency"
	"github.com/0xDexFi/veilcams/internal/domain"
	"github.com/0xDexFi/veilcams/internal/netutil"
)

var rtspPrimaryPorts = map[int]bool{554: true, 8554: true, 8555: true, 10554: true}
var httpsPorts = map[int]bool{443: true, 8443: true}

const (
	httpProbeTimeout  = 8 * time.Second
	rtspProbeTimeout  = 5 * time.Second
	onvifProbeTimeout = 5 * time.Second
)

var (
	modelRegex      = regexp.MustCompile(`(?i)(?:model|devicetype|devicename)["\s:=>]+([^"<,\n\r]+)`)
	firmwareRegex   = regexp.MustCompile(`(?i)(?:firmware|firmwareversion|swversion)["\s:=>]+([^"<,\n\r]+)`)
	formAuthMarkers = regexp.MustCompile(`(?i)<form[^>]*>`)
)

const onvifDeviceInfoEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <GetDeviceInformation xmlns="http://www.onvif.org/ver10/device/wsdl"/>
  </soap:Body>
</soap:Envelope>`

// Fingerprinter runs the Fingerprinting phase over discovered hosts.
type Fingerprinter struct {
	HTTP          *netutil.Client
	RTSP          *netutil.RTSPClient
	MaxConcurrent int
	ResolveDNS    bool
}

// NewFingerprinter constructs a Fingerprinter with sensible defaults.
func NewFingerprinter(maxConcurrent int) *Fingerprinter {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Fingerprinter{
		HTTP:          netutil.NewClient(),
		RTSP:          netutil.NewRTSPClient(rtspProbeTimeout),
		MaxConcurrent: maxConcurrent,
		ResolveDNS:    true,
	}
}

// Run fingerprints every discovered host, up to MaxConcurrent in
// parallel, and returns one FingerprintResult per host (errors are
// captured per-host, never propagated — one unreachable host must not
// sink the batch).
func (f *Fingerprinter) Run(ctx context.Context, hosts []domain.DiscoveredHost) []domain.FingerprintResult {
	tasks := make([]concurrency.Task[domain.FingerprintResult], len(hosts))
	for i, h := range hosts {
		h := h
		tasks[i] = func() (domain.FingerprintResult, error) {
			return f.fingerprintHost(ctx, h), nil
		}
	}

	outcomes := concurrency.RunBounded(tasks, f.MaxConcurrent)
	results := make([]domain.FingerprintResult, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, o.Value)
	}
	return results
}

func (f *Fingerprinter) fingerprintHost(ctx context.Context, h domain.DiscoveredHost) domain.FingerprintResult {
	result := domain.FingerprintResult{
		IP:       h.IP,
		Port:     h.Port,
		Vendor:   domain.VendorUnknown,
		AuthType: domain.AuthUnknown,
		Headers:  map[string]string{},
	}

	switch {
	case rtspPrimaryPorts[h.Port]:
		f.probeRTSPPrimary(ctx, &result)
	case httpsPorts[h.Port]:
		f.probeHTTP(ctx, &result, "https")
	default:
		f.probeHTTP(ctx, &result, "http")
	}

	if result.HasProtocol(domain.ProtoHTTP) || result.HasProtocol(domain.ProtoHTTPS) {
		f.probeONVIF(ctx, &result)
		f.probeRTSPSecondary(ctx, &result)
	}

	if f.ResolveDNS {
		if name := reverseLookup(h.IP); name != "" {
			result.ResolvedHostname = name
		}
	}

	return result
}

func (f *Fingerprinter) probeHTTP(ctx context.Context, result *domain.FingerprintResult, scheme string) {
	url := fmt.Sprintf("%s://%s:%d/", scheme, result.IP, result.Port)
	reqCtx, cancel := context.WithTimeout(ctx, httpProbeTimeout)
	defer cancel()

	resp, err := f.HTTP.Get(reqCtx, url, netutil.RequestOptions{Timeout: httpProbeTimeout})
	if err != nil {
		logrus.WithError(err).WithField("url", url).Debug("fingerprint: http probe failed")
		return
	}

	proto := domain.ProtoHTTP
	if scheme == "https" {
		proto = domain.ProtoHTTPS
	}
	result.Protocols = append(result.Protocols, proto)
	result.WebUIResponded = true

	for k, v := range resp.Headers {
		if len(v) > 0 {
			result.Headers[k] = v[0]
		}
	}
	result.ServerBanner = resp.Headers.Get("Server")
	result.AuthType = classifyAuthType(resp)

	f.detectVendor(ctx, result, scheme, resp)
}

func classifyAuthType(resp *netutil.Response) domain.AuthType {
	switch {
	case resp.Status == 401:
		wa := resp.Headers.Get("WWW-Authenticate")
		if netutil.IsDigest(wa) {
			return domain.AuthDigest
		}
		if wa != "" {
			return domain.AuthBasic
		}
		return domain.AuthUnknown
	case resp.Status == 200:
		body := string(resp.Body)
		if formAuthMarkers.MatchString(body) && containsAny(strings.ToLower(body), "password", "login", "signin") {
			return domain.AuthForm
		}
		return domain.AuthNone
	default:
		return domain.AuthUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (f *Fingerprinter) detectVendor(ctx context.Context, result *domain.FingerprintResult, scheme string, rootResp *netutil.Response) {
	headerText := headersToText(rootResp.Headers)
	sig, ok := BySignature(headerText, string(rootResp.Body))

	if !ok {
		sig, ok = f.probeVendorExistence(ctx, result.IP, result.Port, scheme)
	}
	if !ok {
		return
	}

	result.Vendor = sig.Vendor
	if sig.DeviceInfoURL == "" {
		return
	}

	url := fmt.Sprintf("%s://%s:%d%s", scheme, result.IP, result.Port, sig.DeviceInfoURL)
	reqCtx, cancel := context.WithTimeout(ctx, httpProbeTimeout)
	defer cancel()
	resp, err := f.HTTP.Get(reqCtx, url, netutil.RequestOptions{Timeout: httpProbeTimeout})
	if err != nil {
		return
	}
	body := string(resp.Body)
	if m := modelRegex.FindStringSubmatch(body); len(m) > 1 {
		result.Model = strings.TrimSpace(m[1])
	}
	if m := firmwareRegex.FindStringSubmatch(body); len(m) > 1 {
		result.Firmware = strings.TrimSpace(m[1])
	}
}

// probeVendorExistence probes each registry entry's existence-probe URLs;
// a 2xx/3xx on any one pins that vendor.
func (f *Fingerprinter) probeVendorExistence(ctx context.Context, ip string, port int, scheme string) (VendorSignature, bool) {
	for _, sig := range Registry {
		for _, path := range sig.ExistenceProbeURLs {
			url := fmt.Sprintf("%s://%s:%d%s", scheme, ip, port, path)
			reqCtx, cancel := context.WithTimeout(ctx, httpProbeTimeout)
			resp, err := f.HTTP.Get(reqCtx, url, netutil.RequestOptions{Timeout: httpProbeTimeout})
			cancel()
			if err != nil {
				continue
			}
			if resp.Status >= 200 && resp.Status < 400 {
				return sig, true
			}
		}
	}
	return VendorSignature{}, false
}

func headersToText(h map[string][]string) string {
	var b strings.Builder
	for k, vs := range h {
		b.WriteString(k)
		b.WriteString(": ")
		for _, v := range vs {
			b.WriteString(v)
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (f *Fingerprinter) probeONVIF(ctx context.Context, result *domain.FingerprintResult) {
	scheme := "http"
	if httpsPorts[result.Port] {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d/onvif/device_service", scheme, result.IP, result.Port)
	reqCtx, cancel := context.WithTimeout(ctx, onvifProbeTimeout)
	defer cancel()

	resp, err := f.HTTP.Do(reqCtx, "POST", url, []byte(onvifDeviceInfoEnvelope), netutil.RequestOptions{
		Timeout:     onvifProbeTimeout,
		ContentType: "application/soap+xml",
	})
	if err != nil {
		return
	}

	body := strings.ToLower(string(resp.Body))
	if resp.Status == 401 || strings.Contains(body, "onvif") || strings.Contains(body, "getdeviceinformationresponse") {
		result.ONVIFResponded = true
		result.Protocols = append(result.Protocols, domain.ProtoONVIF)
	}
}

// probeRTSPSecondary probes RTSP OPTIONS on the well-known port 554 from
// an HTTP-classified host, adding rtsp to the protocol set if it answers.
func (f *Fingerprinter) probeRTSPSecondary(ctx context.Context, result *domain.FingerprintResult) {
	reqCtx, cancel := context.WithTimeout(ctx, rtspProbeTimeout)
	defer cancel()
	resp, err := f.RTSP.Options(reqCtx, result.IP, 554, "")
	if err != nil || resp.StatusCode == 0 {
		return
	}
	result.Protocols = append(result.Protocols, domain.ProtoRTSP)
	f.inferVendorFromRTSPBanner(result, resp)
}

// probeRTSPPrimary handles hosts classified as RTSP-primary by port.
func (f *Fingerprinter) probeRTSPPrimary(ctx context.Context, result *domain.FingerprintResult) {
	reqCtx, cancel := context.WithTimeout(ctx, rtspProbeTimeout)
	defer cancel()
	resp, err := f.RTSP.Options(reqCtx, result.IP, result.Port, "")
	if err != nil || resp.StatusCode == 0 {
		return
	}
	result.Protocols = append(result.Protocols, domain.ProtoRTSP)
	f.inferVendorFromRTSPBanner(result, resp)
}

func (f *Fingerprinter) inferVendorFromRTSPBanner(result *domain.FingerprintResult, resp netutil.RTSPResponse) {
	banner := resp.Headers["Server"]
	if banner == "" {
		return
	}
	if result.ServerBanner == "" {
		result.ServerBanner = banner
	}
	if result.Vendor != domain.VendorUnknown {
		return
	}
	if sig, ok := BySignature(banner, ""); ok {
		result.Vendor = sig.Vendor
	}
}

// reverseLookup performs a best-effort PTR lookup, returning "" on any
// failure. This enrichment is purely supplemental and report-only; it
// never gates a finding.
func reverseLookup(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	reverse, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}

	m := new(dns.Msg)
	m.SetQuestion(reverse, dns.TypePTR)
	m.RecursionDesired = true

	c := new(dns.Client)
	c.Timeout = 2 * time.Second

	r, _, err := c.Exchange(m, resolverAddr())
	if err != nil || r == nil || r.Rcode != dns.RcodeSuccess {
		return ""
	}
	for _, ans := range r.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}

func resolverAddr() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return "8.8.8.8:53"
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}
