package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/commune/internal/core/domain"
)

// testClient connects to COMMUNE_TEST_REDIS_URL, skipping when unset.
func testClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("COMMUNE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("COMMUNE_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	c := NewFromClient(redis.NewClient(opts), "test-"+uuid.NewString())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeys(t *testing.T) {
	c := NewFromClient(nil, "")
	if got := c.pendingKey("chore:42-3"); got != "commune:pending:chore:42-3" {
		t.Errorf("pendingKey = %q", got)
	}
	if got := c.notificationChannel("0xabc"); got != "commune:notifications:0xabc" {
		t.Errorf("notificationChannel = %q", got)
	}
}

func TestRegistry_ReserveRelease(t *testing.T) {
	c := testClient(t)
	r := NewRegistry(c, time.Minute)
	ctx := context.Background()

	ok, err := r.Reserve(ctx, "task:9", "a1")
	if err != nil || !ok {
		t.Fatalf("first reserve = %v, %v", ok, err)
	}
	ok, err = r.Reserve(ctx, "task:9", "a2")
	if err != nil || ok {
		t.Fatalf("second reserve = %v, %v, want false", ok, err)
	}

	// a non-holder cannot release
	if err := r.Release(ctx, "task:9", "a2"); err != nil {
		t.Fatal(err)
	}
	if holder, _ := r.Holder(ctx, "task:9"); holder != "a1" {
		t.Fatalf("holder = %q, want a1", holder)
	}

	if err := r.Release(ctx, "task:9", "a1"); err != nil {
		t.Fatal(err)
	}
	if holder, _ := r.Holder(ctx, "task:9"); holder != "" {
		t.Fatalf("holder = %q after release", holder)
	}
}

func TestPublisher_RoundTrip(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan domain.Notification, 1)
	go c.Subscribe(ctx, "0xabc", func(n domain.Notification) { got <- n })

	want := domain.Notification{Level: domain.NotificationSuccess, Message: "Chore completed", TargetID: "42-3"}
	// publish until the subscriber is attached
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := NewPublisher(c, "0xabc").Notify(ctx, want); err != nil {
			t.Fatal(err)
		}
		select {
		case n := <-got:
			if n.Message != want.Message || n.TargetID != want.TargetID {
				t.Fatalf("got %+v", n)
			}
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("notification not received")
		}
	}
}
