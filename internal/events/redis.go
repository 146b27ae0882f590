package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisEmitter publishes events as JSON on a Redis pub/sub channel so that
// listeners outside this process can follow the transcript.
type RedisEmitter struct {
	client  *redis.Client
	channel string
}

func NewRedisEmitter(client *redis.Client, channel string) *RedisEmitter {
	if channel == "" {
		channel = Transcription
	}
	return &RedisEmitter{client: client, channel: channel}
}

func (r *RedisEmitter) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

func (r *RedisEmitter) Channel() string { return r.channel }
