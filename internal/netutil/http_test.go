package netutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientGetReturnsUniformResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "TestCam/1.0")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Get(ctx, srv.URL, RequestOptions{})
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if resp.Status != 200 {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if string(resp.Body) != "hello" {
		t.Errorf("Body = %q, want hello", resp.Body)
	}
	if resp.Headers.Get("Server") != "TestCam/1.0" {
		t.Errorf("Server header = %q", resp.Headers.Get("Server"))
	}
}

func TestClientGetDoesNotErrorOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", `Basic realm="camera"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient()
	resp, err := c.Get(context.Background(), srv.URL, RequestOptions{})
	if err != nil {
		t.Fatalf("Get() on a 401 response must not return an error, got: %v", err)
	}
	if resp.Status != 401 {
		t.Errorf("Status = %d, want 401", resp.Status)
	}
}

func TestClientDoesNotFollowRedirectsByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c := NewClient()
	resp, err := c.Get(context.Background(), srv.URL, RequestOptions{FollowRedirects: false})
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if resp.Status != http.StatusFound {
		t.Errorf("Status = %d, want %d (redirect must not be followed)", resp.Status, http.StatusFound)
	}
}

func TestClientSendsBasicAuthWhenRequested(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient()
	_, err := c.Get(context.Background(), srv.URL, RequestOptions{
		HasBasicAuth:  true,
		BasicAuthUser: "admin",
		BasicAuthPass: "12345",
	})
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if !gotOK || gotUser != "admin" || gotPass != "12345" {
		t.Errorf("got user=%q pass=%q ok=%v, want admin/12345", gotUser, gotPass, gotOK)
	}
}

func TestClientTransportErrorOnUnreachableHost(t *testing.T) {
	c := NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "http://127.0.0.1:1/", RequestOptions{Timeout: 150 * time.Millisecond})
	if err == nil {
		t.Fatal("expected a transport error dialing an unreachable port")
	}
	if _, ok := err.(*TransportError); !ok {
		t.Errorf("expected *TransportError, got %T", err)
	}
}
