package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/telemetry"
)

// Redis bridges instances over redis pub/sub. Every channel key maps to
// one topic under the configured prefix; the relay pattern-subscribes to
// the whole prefix.
type Redis struct {
	client   *redis.Client
	prefix   string
	instance string

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// RedisOptions configures the bridge.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces topics, e.g. "rt" -> "rt:post:p1".
	Prefix string
}

// NewRedis connects the bridge. The connection is verified lazily;
// publish failures degrade to warnings per the best-effort contract.
func NewRedis(opt RedisOptions) *Redis {
	prefix := opt.Prefix
	if prefix == "" {
		prefix = "rt"
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opt.Addr,
			Password: opt.Password,
			DB:       opt.DB,
		}),
		prefix:   prefix,
		instance: uuid.NewString(),
	}
}

func (b *Redis) topic(channelKey string) string {
	return b.prefix + ":" + channelKey
}

// Publish sends one envelope. An unreachable bus logs a warning and
// returns ErrUnavailable; callers keep going with local fanout.
func (b *Redis) Publish(ctx context.Context, channelKey string, ev event.Event) error {
	env := event.Envelope{ChannelKey: channelKey, Origin: b.instance, Event: ev}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.topic(channelKey), payload).Err(); err != nil {
		telemetry.BusErrors.Inc()
		logger.Warn("bus_publish_failed", "key", channelKey, "kind", ev.Kind, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Start launches the inbound relay goroutine. Own-origin envelopes are
// dropped here: the publishing instance already delivered locally.
func (b *Redis) Start(ctx context.Context, relay RelayFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return fmt.Errorf("bus already started")
	}
	b.pubsub = b.client.PSubscribe(ctx, b.prefix+":*")
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		ch := b.pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env event.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					telemetry.BusErrors.Inc()
					logger.Warn("bus_bad_envelope", "topic", msg.Channel, "error", err)
					continue
				}
				if env.Origin == b.instance {
					continue
				}
				relay(env)
			}
		}
	}()
	logger.Info("bus_relay_started", "prefix", b.prefix, "instance", b.instance)
	return nil
}

// Close stops the relay and releases the client.
func (b *Redis) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()
	if pubsub != nil {
		_ = pubsub.Close()
		<-done
	}
	return b.client.Close()
}
