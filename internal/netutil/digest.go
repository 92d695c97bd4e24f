package netutil

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// DigestChallenge is a parsed WWW-Authenticate: Digest header.
type DigestChallenge struct {
	Realm     string
	Nonce     string
	QOP       string // "auth", "auth-int", or "" for legacy no-qop
	Algorithm string // "MD5" or "MD5-sess" (case as received); "" defaults to MD5
	Opaque    string
}

// IsDigest reports whether a raw WWW-Authenticate header value names the
// Digest scheme.
func IsDigest(wwwAuthenticate string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(wwwAuthenticate)), "digest")
}

// ParseWWWAuthenticate parses a WWW-Authenticate: Digest header, tolerating
// both quoted and unquoted parameter values and comma-separated attribute
// lists.
func ParseWWWAuthenticate(header string) (DigestChallenge, error) {
	header = strings.TrimSpace(header)
	lower := strings.ToLower(header)
	if !strings.HasPrefix(lower, "digest") {
		return DigestChallenge{}, fmt.Errorf("not a digest challenge: %q", header)
	}
	rest := strings.TrimSpace(header[len("digest"):])

	params := splitAttributes(rest)

	var c DigestChallenge
	for k, v := range params {
		switch strings.ToLower(k) {
		case "realm":
			c.Realm = v
		case "nonce":
			c.Nonce = v
		case "qop":
			// qop may list multiple values (e.g. "auth,auth-int"); prefer auth.
			opts := strings.Split(v, ",")
			for _, o := range opts {
				o = strings.TrimSpace(o)
				if o == "auth" {
					c.QOP = "auth"
					break
				}
			}
			if c.QOP == "" && len(opts) > 0 {
				c.QOP = strings.TrimSpace(opts[0])
			}
		case "algorithm":
			c.Algorithm = v
		case "opaque":
			c.Opaque = v
		}
	}
	if c.Nonce == "" {
		return DigestChallenge{}, fmt.Errorf("digest challenge missing nonce: %q", header)
	}
	return c, nil
}

// splitAttributes splits a comma-separated attribute list of the form
// key=value or key="value" into a map, tolerating whitespace around
// separators.
func splitAttributes(s string) map[string]string {
	out := map[string]string{}
	var buf strings.Builder
	inQuotes := false
	var parts []string
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			buf.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			continue
		}
		k := strings.TrimSpace(p[:eq])
		v := strings.TrimSpace(p[eq+1:])
		v = strings.Trim(v, `"`)
		out[k] = v
	}
	return out
}

// DigestParams supplies everything ComputeDigestResponse and
// BuildDigestHeader need to build an Authorization header value.
type DigestParams struct {
	Username  string
	Password  string
	Method    string
	URI       string
	Challenge DigestChallenge
	Cnonce    string // if empty, a fresh random cnonce is generated
	NC        string // if empty, defaults to "00000001"
}

// GenerateCnonce returns a fresh random client nonce as lowercase hex.
func GenerateCnonce() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ComputeDigestResponse computes the "response" field of an RFC 2617
// Digest Authorization header, honoring md5-sess, qop=auth, qop=auth-int,
// and the legacy no-qop form.
func ComputeDigestResponse(p DigestParams) string {
	ha1 := md5hex(p.Username + ":" + p.Challenge.Realm + ":" + p.Password)
	if strings.EqualFold(p.Challenge.Algorithm, "MD5-sess") {
		ha1 = md5hex(ha1 + ":" + p.Challenge.Nonce + ":" + p.Cnonce)
	}

	var ha2 string
	switch p.Challenge.QOP {
	case "auth-int":
		// Entity-body hashing is out of scope for GET/OPTIONS/DESCRIBE
		// style probes with empty bodies; hash the empty body per RFC.
		ha2 = md5hex(p.Method + ":" + p.URI + ":" + md5hex(""))
	default:
		ha2 = md5hex(p.Method + ":" + p.URI)
	}

	if p.Challenge.QOP == "auth" || p.Challenge.QOP == "auth-int" {
		return md5hex(strings.Join([]string{ha1, p.Challenge.Nonce, p.NC, p.Cnonce, p.Challenge.QOP, ha2}, ":"))
	}
	return md5hex(ha1 + ":" + p.Challenge.Nonce + ":" + ha2)
}

// BuildDigestHeader computes the full "Authorization: Digest ..." header
// value for the given parameters. A fresh cnonce is generated when
// p.Cnonce is empty; nc defaults to "00000001".
func BuildDigestHeader(p DigestParams) string {
	if p.Cnonce == "" {
		p.Cnonce = GenerateCnonce()
	}
	if p.NC == "" {
		p.NC = "00000001"
	}

	response := ComputeDigestResponse(p)

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		p.Username, p.Challenge.Realm, p.Challenge.Nonce, p.URI, response)
	if p.Challenge.QOP != "" {
		fmt.Fprintf(&b, `, qop=%s, nc=%s, cnonce="%s"`, p.Challenge.QOP, p.NC, p.Cnonce)
	}
	if p.Challenge.Algorithm != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, p.Challenge.Algorithm)
	}
	if p.Challenge.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, p.Challenge.Opaque)
	}
	return b.String()
}
