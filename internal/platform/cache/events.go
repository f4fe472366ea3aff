package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LedgerChannel carries ledger change notifications for downstream caches.
const LedgerChannel = "gl.bump"

// EventPublisher publishes ledger events on a Redis channel.
type EventPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewEventPublisher publishes on LedgerChannel.
func NewEventPublisher(client redis.UniversalClient) *EventPublisher {
	return &EventPublisher{client: client, channel: LedgerChannel}
}

// Publish encodes the event as JSON.
func (p *EventPublisher) Publish(ctx context.Context, ev shared.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("platform/cache: encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("platform/cache: publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Subscribe delivers ledger events to fn until ctx is done. Undecodable
// messages are logged and skipped.
func Subscribe(ctx context.Context, client redis.UniversalClient, logger *slog.Logger, fn func(context.Context, shared.Event)) error {
	sub := client.Subscribe(ctx, LedgerChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("platform/cache: subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev shared.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("drop malformed ledger event", slog.Any("error", err))
				continue
			}
			fn(ctx, ev)
		}
	}
}
