package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/commune/internal/core/domain"
)

// Publisher fans notifications out on a per-user pub/sub channel.
type Publisher struct {
	client *Client
	user   string
}

func NewPublisher(client *Client, user string) *Publisher {
	return &Publisher{client: client, user: user}
}

func (p *Publisher) Notify(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.client.rdb.Publish(ctx, p.client.notificationChannel(p.user), payload).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Subscribe delivers notifications for user to fn until ctx is done.
func (c *Client) Subscribe(ctx context.Context, user string, fn func(domain.Notification)) error {
	sub := c.rdb.Subscribe(ctx, c.notificationChannel(user))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n domain.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			fn(n)
		}
	}
}
