package ai

import (
	"context"
	"testing"
	"time"
)

func TestCloseWithoutDialIsNoop(t *testing.T) {
	c := NewClient("127.0.0.1:1")
	if err := c.Close(); err != nil {
		t.Errorf("Close() on an undialed client returned error: %v", err)
	}
}

func TestSuggestCVEChecksReturnsErrorOnUnreachableGateway(t *testing.T) {
	c := NewClient("127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.SuggestCVEChecks(ctx, TargetInfo{IP: "10.0.0.1", Vendor: "hikvision"}, 3)
	if err == nil {
		t.Fatal("expected an error from a gateway that cannot be reached")
	}
}

func TestSuggestPathsReturnsErrorOnUnreachableGateway(t *testing.T) {
	c := NewClient("127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.SuggestPaths(ctx, TargetInfo{IP: "10.0.0.1", Vendor: "hikvision"}, 3)
	if err == nil {
		t.Fatal("expected an error from a gateway that cannot be reached")
	}
}
