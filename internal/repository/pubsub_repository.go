package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PubSubRepository publishes messages on Redis channels.
type PubSubRepository struct {
	client *redis.Client
}

// NewPubSubRepository constructs the publisher.
func NewPubSubRepository(client *redis.Client) *PubSubRepository {
	return &PubSubRepository{client: client}
}

// Publish sends payload to channel. A nil client drops the message.
func (r *PubSubRepository) Publish(ctx context.Context, channel string, payload []byte) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}
