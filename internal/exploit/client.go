// Package exploit is a thin client for the external exploitation
// framework. Invoking real exploit payloads is explicitly beyond the
// core spec (the Non-goals exclude exploitation payload execution beyond
// delegating to an external tool); this package only defines the wire
// contract and a client the workflow engine calls once, conditionally,
// after the CVE scanner reports at least one vulnerable host.
package exploit

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/0xDexFi/veilcams/internal/rpccodec"
)

// Target identifies one vulnerable host/CVE pair to hand off.
type Target struct {
	IP     string `json:"ip"`
	Port   int    `json:"port"`
	CveID  string `json:"cve_id"`
	Vendor string `json:"vendor"`
}

// Outcome is the gateway's report of what happened when it attempted (or
// confirmed) exploitation against one target.
type Outcome struct {
	Target      Target `json:"target"`
	Attempted   bool   `json:"attempted"`
	Succeeded   bool   `json:"succeeded"`
	Evidence    string `json:"evidence"`
	Remediation string `json:"remediation"`
}

type runRequest struct {
	Targets              []Target `json:"targets"`
	TimeoutPerExploit    int      `json:"timeout_per_exploit_seconds"`
	AutoExploitConfirmed bool     `json:"auto_exploit_confirmed"`
}

type runResponse struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Client is a gRPC client for the exploitation gateway, using a JSON
// codec instead of protoc-generated messages.
type Client struct {
	addr string
	conn *grpc.ClientConn
}

// NewClient constructs a Client bound to addr.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) dial(ctx context.Context) (*grpc.ClientConn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := grpc.DialContext(ctx, c.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("exploit: dial %s: %w", c.addr, err)
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

// Run hands targets off to the external exploitation framework and
// returns its per-target outcomes.
func (c *Client) Run(ctx context.Context, targets []Target, timeoutPerExploit time.Duration, autoExploitConfirmed bool) ([]Outcome, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Hour)
	defer cancel()

	req := runRequest{
		Targets:              targets,
		TimeoutPerExploit:    int(timeoutPerExploit.Seconds()),
		AutoExploitConfirmed: autoExploitConfirmed,
	}
	var resp runResponse
	if err := conn.Invoke(callCtx, "/veilcams.exploit.ExploitGateway/Run", &req, &resp, grpc.CallContentSubtype(rpccodec.Name)); err != nil {
		return nil, fmt.Errorf("exploit: Run: %w", err)
	}
	return resp.Outcomes, nil
}
