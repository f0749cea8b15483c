// Package rpc provides a resilient JSON-RPC client for EVM chains.
//
// Several providers can serve one chain; calls retry with backoff on transient
// errors and fail over to the next provider on rate limiting or repeated
// failures.
//
//	router := routing.NewRouter()
//	router.AddProvider("base-sepolia", provider.NewHTTPProvider("public", url, 10*time.Second))
//	client := rpc.NewClient("base-sepolia", router)
//
//	var head string
//	err := client.Call(ctx, &head, "eth_blockNumber")
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/commune/internal/infra/rpc/provider"
	"github.com/vietddude/commune/internal/infra/rpc/routing"
)

// Client is the high-level interface for making RPC calls on one chain.
type Client struct {
	chain  string
	router routing.Router
	retry  routing.RetryConfig
}

// NewClient creates a client for chain using the default retry policy.
func NewClient(chain string, router routing.Router) *Client {
	return &Client{chain: chain, router: router, retry: routing.DefaultRetryConfig}
}

// WithRetry returns a copy of the client using cfg.
func (c *Client) WithRetry(cfg routing.RetryConfig) *Client {
	cp := *c
	cp.retry = cfg
	return &cp
}

// Chain returns the chain name the client is bound to.
func (c *Client) Chain() string {
	return c.chain
}

// Call invokes method and decodes the result into out. out may be nil.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	raw, err := c.CallRaw(ctx, method, params...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// CallRaw invokes method with failover and returns the undecoded result.
func (c *Client) CallRaw(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return routing.CallWithRetryAndFailover(ctx, c.router, c.chain, method, params, c.retry)
}

// ProviderHealth returns the health of every provider of the chain.
func (c *Client) ProviderHealth() map[string]provider.HealthStatus {
	out := make(map[string]provider.HealthStatus)
	for _, p := range c.router.GetAllProviders(c.chain) {
		out[p.GetName()] = p.GetHealth()
	}
	return out
}

// Close closes every provider of the chain.
func (c *Client) Close() error {
	var first error
	for _, p := range c.router.GetAllProviders(c.chain) {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
