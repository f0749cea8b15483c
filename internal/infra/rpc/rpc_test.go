package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/commune/internal/infra/rpc/provider"
	"github.com/vietddude/commune/internal/infra/rpc/routing"
)

const testChain = "testnet"

// MockProvider implements provider.Provider for routing tests
type MockProvider struct {
	name      string
	err       error
	result    string
	callCount int
}

func (m *MockProvider) GetName() string { return m.name }

func (m *MockProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(fmt.Sprintf("%q", m.result)), nil
}

func (m *MockProvider) GetHealth() provider.HealthStatus {
	return provider.HealthStatus{Available: m.err == nil}
}

func (m *MockProvider) IsAvailable() bool { return true }
func (m *MockProvider) Close() error      { return nil }

var fastRetry = routing.RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    time.Millisecond,
	MaxDelay:        time.Millisecond,
	BackoffMultiple: 1,
}

// TestRPC_RetryAndFailover verifies retry on primary provider
// and failover to secondary provider
func TestRPC_RetryAndFailover(t *testing.T) {
	primary := &MockProvider{name: "primary", err: errors.New("connection reset by peer")}
	secondary := &MockProvider{name: "secondary", result: "0x1"}

	router := routing.NewRouter()
	router.AddProvider(testChain, primary)
	router.AddProvider(testChain, secondary)

	client := NewClient(testChain, router).WithRetry(fastRetry)

	var result string
	if err := client.Call(context.Background(), &result, "eth_blockNumber"); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if result != "0x1" {
		t.Fatalf("unexpected result: %v", result)
	}
	if primary.callCount != fastRetry.MaxAttempts {
		t.Errorf("primary provider expected %d retries, got %d", fastRetry.MaxAttempts, primary.callCount)
	}
	if secondary.callCount != 1 {
		t.Errorf("secondary provider expected 1 call, got %d", secondary.callCount)
	}
}

func TestRPC_RateLimitFailsOverWithoutRetry(t *testing.T) {
	primary := &MockProvider{name: "primary", err: errors.New("429 Too Many Requests")}
	secondary := &MockProvider{name: "secondary", result: "0x2"}

	router := routing.NewRouter()
	router.AddProvider(testChain, primary)
	router.AddProvider(testChain, secondary)

	var result string
	if err := NewClient(testChain, router).WithRetry(fastRetry).Call(context.Background(), &result, "eth_chainId"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if primary.callCount != 1 {
		t.Errorf("rate limited provider should not be retried, got %d calls", primary.callCount)
	}
}

func TestRPC_ExecutionErrorIsNotFailedOver(t *testing.T) {
	revert := &provider.RPCError{Code: 3, Message: "execution reverted"}
	primary := &MockProvider{name: "primary", err: revert}
	secondary := &MockProvider{name: "secondary", result: "0x"}

	router := routing.NewRouter()
	router.AddProvider(testChain, primary)
	router.AddProvider(testChain, secondary)

	err := NewClient(testChain, router).WithRetry(fastRetry).Call(context.Background(), nil, "eth_call")

	var rpcErr *provider.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != 3 {
		t.Fatalf("expected the revert to surface, got %v", err)
	}
	if secondary.callCount != 0 {
		t.Error("execution error was failed over to another provider")
	}
	if router.CircuitOpen("primary") {
		t.Error("execution error counted against the provider")
	}
}

func TestRPC_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	primary := &MockProvider{name: "primary", err: errors.New("503 unavailable")}
	secondary := &MockProvider{name: "secondary", result: "0x3"}

	router := routing.NewRouter()
	router.AddProvider(testChain, primary)
	router.AddProvider(testChain, secondary)
	client := NewClient(testChain, router).WithRetry(routing.RetryConfig{MaxAttempts: 1})

	for i := 0; i < 5; i++ {
		router.RecordFailure("primary", primary.err)
	}
	if !router.CircuitOpen("primary") {
		t.Fatal("expected circuit to open")
	}

	primary.callCount = 0
	for i := 0; i < 4; i++ {
		if err := client.Call(context.Background(), nil, "eth_blockNumber"); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if primary.callCount != 0 {
		t.Errorf("open circuit provider was tried %d times", primary.callCount)
	}
}

func TestRPC_NoProviders(t *testing.T) {
	err := NewClient("unknown", routing.NewRouter()).Call(context.Background(), nil, "eth_chainId")
	if err == nil {
		t.Fatal("expected error without providers")
	}
}
