package creds

import (
	"errors"
	"testing"

	"github.com/0xDexFi/veilcams/internal/domain"
)

func TestIsDifferentBaselineFetchFailed(t *testing.T) {
	baseline := baselineEntry{err: errors.New("connection refused")}
	if !isDifferent(baseline, 200, "ok") {
		t.Error("expected success status to count as different when baseline fetch failed")
	}
	if isDifferent(baseline, 500, "nope") {
		t.Error("expected non-2xx/3xx status to not count as different when baseline fetch failed")
	}
}

func TestIsDifferentUnauthorizedBaselineThenAuthed(t *testing.T) {
	baseline := baselineEntry{status: 401, body: "login required"}
	if !isDifferent(baseline, 200, "welcome dashboard") {
		t.Error("401 baseline -> 200 authed must register as different")
	}
}

func TestIsDifferentIdenticalResponse(t *testing.T) {
	baseline := baselineEntry{status: 200, body: "same content"}
	if isDifferent(baseline, 200, "same content") {
		t.Error("byte-identical status+body must not register as different")
	}
}

func TestIsDifferentSameStatusSmallSizeDeltaNoNewMarker(t *testing.T) {
	baseline := baselineEntry{status: 200, body: "hello world this is the login page content here"}
	authed := "hello world this is the login page content herf" // ~1 char delta, <10%
	if isDifferent(baseline, 200, authed) {
		t.Error("small body delta with no new post-login marker must not register as different")
	}
}

func TestIsDifferentSameStatusSmallDeltaButNewMarker(t *testing.T) {
	baseline := baselineEntry{status: 200, body: "hello world this is a generic landing page here, served identically to every visitor who requests the root path"}
	authed := "hello world this is a generic landing page here, served identically to every visitor who requests the root path dashboard" // 10-byte delta, <10%
	if !isDifferent(baseline, 200, authed) {
		t.Error("small body delta but a new post-login marker (dashboard) must register as different")
	}
}

func TestIsDifferentSameStatusLargeDelta(t *testing.T) {
	baseline := baselineEntry{status: 200, body: "short"}
	authed := "this body is dramatically larger than the baseline body by any measure of percentage difference"
	if !isDifferent(baseline, 200, authed) {
		t.Error("large body size delta at same status must register as different")
	}
}

func TestIsDifferentDifferentNonErrorStatuses(t *testing.T) {
	baseline := baselineEntry{status: 200, body: "ok"}
	if isDifferent(baseline, 301, "redirect") {
		t.Error("differing non-4xx/5xx, non-2xx/3xx-after-baseline-error statuses fall through to false per the rule table")
	}
}

func TestHasNewPostLoginMarker(t *testing.T) {
	if !hasNewPostLoginMarker("public landing page", "welcome back, you are now logged in, see dashboard") {
		t.Error("expected dashboard marker to be detected as new")
	}
	if hasNewPostLoginMarker("dashboard already visible here", "dashboard still visible here") {
		t.Error("marker present in both baseline and authed must not count as new")
	}
}

func TestBuildCredentialListOrderingAndDedup(t *testing.T) {
	tester := NewTester(5, 0, 0, true, []domain.Credential{
		{Username: "admin", Password: "12345"}, // duplicate of a Hikvision default
		{Username: "custom", Password: "custom"},
	})

	list := tester.buildCredentialList(domain.VendorHikvision)

	seen := map[string]int{}
	for _, c := range list {
		seen[c.DedupKey()]++
	}
	for k, n := range seen {
		if n > 1 {
			t.Errorf("credential %q appears %d times, want deduplicated", k, n)
		}
	}

	foundCustom := false
	for _, c := range list {
		if c.Username == "custom" {
			foundCustom = true
		}
	}
	if !foundCustom {
		t.Error("custom credential missing from built list")
	}

	if len(list) == 0 || list[0].DedupKey() != (domain.Credential{Username: "admin", Password: "12345"}).DedupKey() {
		t.Error("expected the Hikvision vendor default admin:12345 to come first")
	}
	if len(list) == 0 || list[len(list)-1].Username != "custom" {
		t.Error("expected the custom credential to come last")
	}
}

func TestBuildCredentialListUnknownVendorUsesGenericDefaults(t *testing.T) {
	tester := NewTester(5, 0, 0, true, nil)
	list := tester.buildCredentialList(domain.VendorUnknown)
	if len(list) == 0 {
		t.Error("expected generic default credentials for an unknown vendor")
	}
}
