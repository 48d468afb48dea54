package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	EventRecordCreated  = "record.created"
	EventRecordVerified = "record.verified"
)

// RecordEvent is fanned out to websocket subscribers and the notifier.
type RecordEvent struct {
	Kind      string    `json:"kind"`
	ProductID string    `json:"product_id"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier forwards record events to an external channel.
type Notifier interface {
	Notify(ctx context.Context, ev RecordEvent) error
}

// EventBus fans one record event out to the realtime hub and the notifier.
// A nil bus, hub or notifier is skipped.
type EventBus struct {
	hub      *RealtimeHub
	notifier Notifier
	log      *zap.Logger
}

func NewEventBus(hub *RealtimeHub, notifier Notifier, log *zap.Logger) *EventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventBus{hub: hub, notifier: notifier, log: log}
}

// Emit is safe to call anywhere; delivery failures are only logged.
func (b *EventBus) Emit(ctx context.Context, kind, productID string, payload any) {
	if b == nil {
		return
	}
	ev := RecordEvent{Kind: kind, ProductID: productID, Payload: payload, At: time.Now().UTC()}

	if b.hub != nil {
		b.hub.Broadcast(productID, ev)
	}
	if b.notifier != nil {
		if err := b.notifier.Notify(ctx, ev); err != nil {
			b.log.Warn("notify record event",
				zap.String("kind", kind),
				zap.String("product_id", productID),
				zap.Error(err))
		}
	}
}
