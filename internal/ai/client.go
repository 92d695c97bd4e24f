// Package ai is a thin client for the external AI probe-generation
// gateway. AI-augmented probe/CVE-check generation is explicitly beyond
// the core spec; this package only defines the wire contract and a
// client the CVE scanner and protocol fuzzer can call when configured
// with a gateway address. A missing or unreachable gateway degrades to
// "no AI suggestions," never an error the caller must special-case beyond
// checking err.
package ai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/0xDexFi/veilcams/internal/rpccodec"
)

// TargetInfo is the subset of a FingerprintResult the gateway needs to
// suggest checks or paths; kept separate from domain.FingerprintResult so
// this package has no dependency on the full domain model.
type TargetInfo struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Vendor   string `json:"vendor"`
	Model    string `json:"model"`
	Firmware string `json:"firmware"`
}

// CveSuggestion is one AI-suggested CVE check result, already probed by
// the gateway and returned pre-verified.
type CveSuggestion struct {
	CveID      string `json:"cve_id"`
	Title      string `json:"title"`
	Severity   string `json:"severity"`
	Vulnerable bool   `json:"vulnerable"`
	Evidence   string `json:"evidence"`
}

// PathSuggestion is one AI-suggested candidate path for the protocol
// fuzzer to probe.
type PathSuggestion struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

type suggestCVEChecksRequest struct {
	Target TargetInfo `json:"target"`
	Limit  int        `json:"limit"`
}

type suggestCVEChecksResponse struct {
	Suggestions []CveSuggestion `json:"suggestions"`
}

type suggestPathsRequest struct {
	Target TargetInfo `json:"target"`
	Limit  int        `json:"limit"`
}

type suggestPathsResponse struct {
	Suggestions []PathSuggestion `json:"suggestions"`
}

// Client is a gRPC client for the AI probe gateway, using a JSON codec
// instead of protoc-generated messages.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

// NewClient constructs a Client bound to addr. The connection is dialed
// lazily on first call.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) dial(ctx context.Context) (*grpc.ClientConn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := grpc.DialContext(ctx, c.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("ai: dial %s: %w", c.addr, err)
	}
	c.conn = conn
	return conn, nil
}

// Close releases the underlying connection, if one was established.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// SuggestCVEChecks asks the gateway for up to limit AI-generated,
// pre-verified CVE checks for target.
func (c *Client) SuggestCVEChecks(ctx context.Context, target TargetInfo, limit int) ([]CveSuggestion, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req := suggestCVEChecksRequest{Target: target, Limit: limit}
	var resp suggestCVEChecksResponse
	if err := conn.Invoke(callCtx, "/veilcams.ai.AIGateway/SuggestCVEChecks", &req, &resp, grpc.CallContentSubtype(rpccodec.Name)); err != nil {
		return nil, fmt.Errorf("ai: SuggestCVEChecks: %w", err)
	}
	return resp.Suggestions, nil
}

// SuggestPaths asks the gateway for up to limit AI-generated candidate
// paths for the protocol fuzzer to probe.
func (c *Client) SuggestPaths(ctx context.Context, target TargetInfo, limit int) ([]PathSuggestion, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req := suggestPathsRequest{Target: target, Limit: limit}
	var resp suggestPathsResponse
	if err := conn.Invoke(callCtx, "/veilcams.ai.AIGateway/SuggestPaths", &req, &resp, grpc.CallContentSubtype(rpccodec.Name)); err != nil {
		return nil, fmt.Errorf("ai: SuggestPaths: %w", err)
	}
	return resp.Suggestions, nil
}
