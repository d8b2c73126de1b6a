package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// PubSub carries broadcast payloads between service instances over Redis
// pub/sub. It satisfies events.Broadcaster.
type PubSub struct {
	client *redis.Client
}

func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

func (p *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

func (p *PubSub) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	sub := p.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	// wait for the subscription to be confirmed before consuming
	if _, err := sub.Receive(ctx); err != nil {
		return err
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
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
