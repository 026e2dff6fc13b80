package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/points-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Deliverer hands encoded events to locally connected subscribers
type Deliverer interface {
	Deliver(topic string, data []byte)
}

// envelope is the pub/sub message carrying one event
type envelope struct {
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event"`
}

// Relay fans events out through a Redis channel so every server instance delivers them to
// its own websocket clients.
type Relay struct {
	client  *redis.Client
	channel string
	local   Deliverer
	logger  *slog.Logger
}

// NewRelay creates a relay on the given channel
func NewRelay(client *redis.Client, channel string, local Deliverer, logger *slog.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
	}
}

// Publish sends an event to every instance subscribed to the channel
func (r *Relay) Publish(ctx context.Context, topic string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}
	msg, err := json.Marshal(envelope{Topic: topic, Event: data})
	if err != nil {
		r.logger.Error("failed to marshal envelope", "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		r.logger.Warn("relay publish failed", "topic", topic, "type", event.Type, "error", err)
	}
}

// Run forwards channel messages to local subscribers until ctx is done
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("event relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("invalid relay message", "error", err)
				continue
			}
			r.local.Deliver(env.Topic, env.Event)
		}
	}
}
