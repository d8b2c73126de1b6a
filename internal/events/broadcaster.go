package events

import "context"

// Broadcaster fans payloads out to every instance of the service.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe blocks, invoking handler for every payload published on a
	// channel matching pattern, until ctx is done or the subscription fails.
	Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
}

// LocalBroadcaster is used when a single instance serves every connection.
type LocalBroadcaster struct{}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{}
}

func (LocalBroadcaster) Publish(context.Context, string, []byte) error {
	return nil
}

func (LocalBroadcaster) Subscribe(ctx context.Context, _ string, _ func(string, []byte)) error {
	<-ctx.Done()
	return ctx.Err()
}
