package messagequeue

import "context"

// MessageQueue defines the publish side of a message broker.
type MessageQueue interface {
	Publish(ctx context.Context, subject string, body []byte) error
	Close() error
}
