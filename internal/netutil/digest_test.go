package netutil

import (
	"strings"
	"testing"
)

// TestComputeDigestResponseRFC2617Vector reproduces the worked example from
// RFC 2617 section 3.5 byte-for-byte.
func TestComputeDigestResponseRFC2617Vector(t *testing.T) {
	p := DigestParams{
		Username: "Mufasa",
		Password: "Circle Of Life",
		Method:   "GET",
		URI:      "/dir/index.html",
		Challenge: DigestChallenge{
			Realm: "testrealm@host.com",
			Nonce: "dcd98b7102dd2f0e8b11d0f600bfb0c093",
			QOP:   "auth",
		},
		Cnonce: "0a4f113b",
		NC:     "00000001",
	}

	got := ComputeDigestResponse(p)
	want := "6629fae49393a05397450978507c4ef1"
	if got != want {
		t.Errorf("ComputeDigestResponse() = %q, want %q", got, want)
	}
}

func TestComputeDigestResponseLegacyNoQOP(t *testing.T) {
	p := DigestParams{
		Username: "admin",
		Password: "12345",
		Method:   "GET",
		URI:      "/",
		Challenge: DigestChallenge{
			Realm: "camera",
			Nonce: "abc123",
		},
	}

	got := ComputeDigestResponse(p)
	ha1 := md5hex("admin:camera:12345")
	ha2 := md5hex("GET:/")
	want := md5hex(ha1 + ":abc123:" + ha2)
	if got != want {
		t.Errorf("ComputeDigestResponse() = %q, want %q", got, want)
	}
}

func TestComputeDigestResponseMD5Sess(t *testing.T) {
	base := DigestParams{
		Username: "admin",
		Password: "12345",
		Method:   "GET",
		URI:      "/",
		Challenge: DigestChallenge{
			Realm:     "camera",
			Nonce:     "abc123",
			QOP:       "auth",
			Algorithm: "MD5-sess",
		},
		Cnonce: "deadbeef",
		NC:     "00000001",
	}

	sess := ComputeDigestResponse(base)

	plain := base
	plain.Challenge.Algorithm = ""
	nonSess := ComputeDigestResponse(plain)

	if sess == nonSess {
		t.Error("MD5-sess and plain MD5 responses must differ given the same inputs")
	}
}

func TestIsDigest(t *testing.T) {
	cases := map[string]bool{
		`Digest realm="x", nonce="y"`: true,
		`digest realm="x"`:            true,
		`Basic realm="x"`:             false,
		"":                            false,
	}
	for in, want := range cases {
		if got := IsDigest(in); got != want {
			t.Errorf("IsDigest(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseWWWAuthenticateQuoted(t *testing.T) {
	header := `Digest realm="testrealm@host.com", qop="auth,auth-int", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", opaque="5ccc069c403ebaf9f0171e9517f40e41"`
	c, err := ParseWWWAuthenticate(header)
	if err != nil {
		t.Fatalf("ParseWWWAuthenticate returned error: %v", err)
	}
	if c.Realm != "testrealm@host.com" {
		t.Errorf("Realm = %q", c.Realm)
	}
	if c.Nonce != "dcd98b7102dd2f0e8b11d0f600bfb0c093" {
		t.Errorf("Nonce = %q", c.Nonce)
	}
	if c.QOP != "auth" {
		t.Errorf("QOP = %q, want auth (preferred over auth-int)", c.QOP)
	}
	if c.Opaque != "5ccc069c403ebaf9f0171e9517f40e41" {
		t.Errorf("Opaque = %q", c.Opaque)
	}
}

func TestParseWWWAuthenticateUnquoted(t *testing.T) {
	header := `Digest realm=camera, nonce=abc123`
	c, err := ParseWWWAuthenticate(header)
	if err != nil {
		t.Fatalf("ParseWWWAuthenticate returned error: %v", err)
	}
	if c.Realm != "camera" || c.Nonce != "abc123" {
		t.Errorf("got realm=%q nonce=%q", c.Realm, c.Nonce)
	}
}

func TestParseWWWAuthenticateMissingNonce(t *testing.T) {
	_, err := ParseWWWAuthenticate(`Digest realm="camera"`)
	if err == nil {
		t.Error("expected error for missing nonce")
	}
}

func TestBuildDigestHeaderIncludesQOPFields(t *testing.T) {
	header := BuildDigestHeader(DigestParams{
		Username: "admin",
		Password: "12345",
		Method:   "GET",
		URI:      "/",
		Challenge: DigestChallenge{
			Realm: "camera",
			Nonce: "abc123",
			QOP:   "auth",
		},
		Cnonce: "fixedcnonce",
		NC:     "00000001",
	})
	if !IsDigest(header) {
		t.Fatalf("built header does not start with Digest: %q", header)
	}
	for _, want := range []string{`username="admin"`, `nonce="abc123"`, `qop=auth`, `nc=00000001`, `cnonce="fixedcnonce"`} {
		if !strings.Contains(header, want) {
			t.Errorf("header %q missing %q", header, want)
		}
	}
}
