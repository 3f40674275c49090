package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xamle/civic-api/internal/models"
)

// EventPublisher fans domain events out over Redis pub/sub. The realtime
// gateway and the mailer subscribe to the topics in models; nobody in this
// core ever waits for delivery.
type EventPublisher struct {
	client *redis.Client
}

// NewEventPublisher constructs the publisher. A nil client silently drops
// every event, which keeps local setups without Redis working.
func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// Publish serializes the payload and pushes it to the topic.
func (p *EventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	if p.client == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	if err := p.client.Publish(ctx, topic, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishPolicyUpdated is a typed convenience wrapper.
func (p *EventPublisher) PublishPolicyUpdated(ctx context.Context, event models.PolicyUpdatedEvent) error {
	return p.Publish(ctx, models.TopicPolicyUpdated, event)
}

// PublishContributionCreated is a typed convenience wrapper.
func (p *EventPublisher) PublishContributionCreated(ctx context.Context, event models.ContributionCreatedEvent) error {
	return p.Publish(ctx, models.TopicContributionNew, event)
}
