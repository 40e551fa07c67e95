package streams

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes pipeline completion events to Redis Streams
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a new Publisher instance
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &Publisher{rdb: redis.NewClient(opts)}, nil
}

// PublishCompletion publishes a completion event to the stream and returns
// the stream message ID.
func (p *Publisher) PublishCompletion(ctx context.Context, ev CompletionEvent) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion event: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamMeetingsCompleted,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"schema_version": SchemaVersionV1,
			"payload":        string(payload),
		},
	})
	msgID, err := result.Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish completion event: %w", err)
	}

	return msgID, nil
}

// Close closes the underlying Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
