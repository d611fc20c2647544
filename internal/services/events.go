package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Event types, also used as routing keys.
const (
	EventProductAdded = "product.added"
	EventQtyUpdated   = "product.qty_updated"
)

// ProductEvent describes a completed catalog write.
type ProductEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	ProductID  int64     `json:"product_id"`
	Qty        int       `json:"qty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers product events to interested consumers.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, ev ProductEvent) error
}

func newProductEvent(eventType string, id, qty any) ProductEvent {
	return ProductEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		ProductID:  cast.ToInt64(id),
		Qty:        cast.ToInt(qty),
		OccurredAt: time.Now().UTC(),
	}
}
