// Package notify publishes domain events to Redis for downstream consumers
// such as the notification worker and activity feeds.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is a single domain event pushed onto the event stream.
type Event struct {
	Type       string    `json:"type"`
	TargetID   string    `json:"target_id"`
	TargetType string    `json:"target_type,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	ChannelID  string    `json:"channel_id,omitempty"`
	ThreadID   string    `json:"thread_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event types pushed by the discussion engine.
const (
	EventThreadCreated = "thread.created"
	EventPostCreated   = "post.created"
	EventPostDeleted   = "post.deleted"
	EventPostFlagged   = "post.flagged"
	EventTargetBuried  = "target.buried"
	EventPollVoted     = "poll.voted"
)

// Publisher pushes events onto a Redis list. A nil Publisher is a no-op,
// so callers never have to branch on whether Redis is configured.
type Publisher struct {
	client *redis.Client
	queue  string
}

// NewPublisher connects to Redis and returns a publisher.
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Publisher{
		client: client,
		queue:  "agora:events",
	}, nil
}

// NewPublisherWithClient creates a publisher from an existing Redis client.
func NewPublisherWithClient(client *redis.Client) *Publisher {
	return &Publisher{
		client: client,
		queue:  "agora:events",
	}
}

// Publish pushes an event onto the queue. Failures are logged and swallowed:
// event delivery is best-effort and must never fail a write request.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("notify: marshal event %s: %v", event.Type, err)
		return
	}

	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		log.Printf("notify: publish event %s: %v", event.Type, err)
	}
}

// Queue returns the Redis list key events are pushed to.
func (p *Publisher) Queue() string {
	return p.queue
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}

// Ping checks if Redis is reachable.
func (p *Publisher) Ping(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.client.Ping(ctx).Err()
}
