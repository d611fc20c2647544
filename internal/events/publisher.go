package events

import (
	"context"
	"encoding/json"
	"fmt"

	"catalog/internal/services"
)

// Sender is the transport events are written to; *rabbitmq.Client satisfies it.
type Sender interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Publisher encodes product events as JSON and routes them by event type.
type Publisher struct {
	sender   Sender
	exchange string
}

func NewPublisher(sender Sender, exchange string) *Publisher {
	return &Publisher{sender: sender, exchange: exchange}
}

func (p *Publisher) PublishProductEvent(ctx context.Context, ev services.ProductEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal product event: %w", err)
	}
	if err := p.sender.Publish(ctx, p.exchange, ev.Type, body); err != nil {
		return fmt.Errorf("failed to publish %s event %s: %w", ev.Type, ev.EventID, err)
	}
	return nil
}
