// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("parkhaven/relay")

// Handler receives inbound protocol messages. Handlers run on the relay's
// receive goroutine and must hand work to their own mutation path.
type Handler func(Message)

// Relay publishes and receives queue protocol messages.
type Relay interface {
	// Publish broadcasts a message to every process in the group.
	// Publish is best-effort: a failure is returned for logging but the
	// protocol never retries within a tick.
	Publish(ctx context.Context, msg Message) error
	// Subscribe registers the handler for inbound messages and starts
	// receiving. Messages originating from this process are filtered out.
	Subscribe(ctx context.Context, h Handler) error
	// Close stops receiving.
	Close() error
}

// RedisRelay is the production Relay over a Redis pub/sub channel shared by
// the cooperating server processes.
type RedisRelay struct {
	client  *redis.Client
	channel string
	server  string

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisRelay creates a relay identified on the wire as server, publishing
// on the given channel.
func NewRedisRelay(client *redis.Client, channel, server string) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		server:  server,
	}
}

// Publish broadcasts a message to the channel.
func (r *RedisRelay) Publish(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "relay.publish",
		trace.WithAttributes(
			attribute.String("relay.kind", string(msg.Kind)),
			attribute.String("relay.queue_id", msg.QueueID),
		),
	)
	defer span.End()

	if msg.From == "" {
		msg.From = r.server
	}
	data, err := msg.Encode()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		span.RecordError(err)
		return oops.Code("RELAY_PUBLISH_FAILED").
			With("kind", string(msg.Kind)).
			With("queue", msg.QueueID).
			Wrap(err)
	}
	return nil
}

// Subscribe starts the receive loop. Malformed payloads and own messages are
// dropped with a log line; a decode failure never stops the loop.
func (r *RedisRelay) Subscribe(ctx context.Context, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return oops.Code("RELAY_ALREADY_SUBSCRIBED").Errorf("relay already subscribed")
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	// Force the subscription to be established before returning so callers
	// can rely on receiving messages published afterwards.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return oops.Code("RELAY_SUBSCRIBE_FAILED").With("channel", r.channel).Wrap(err)
	}

	r.pubsub = pubsub
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				msg, err := Decode([]byte(raw.Payload))
				if err != nil {
					slog.Warn("relay: dropping malformed message", "error", err)
					continue
				}
				if msg.From == r.server {
					continue
				}
				h(msg)
			}
		}
	}()

	slog.Info("relay subscribed", "channel", r.channel, "server", r.server)
	return nil
}

// Close stops the receive loop and unsubscribes.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	pubsub := r.pubsub
	done := r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	if err := pubsub.Close(); err != nil {
		return oops.Code("RELAY_CLOSE_FAILED").Wrap(err)
	}
	if done != nil {
		<-done
	}
	return nil
}
