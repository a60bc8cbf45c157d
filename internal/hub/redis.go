package hub

import (
	"context"
	"encoding/json"

	"github.com/Henok-Al/MESOB-FOOD-ORDERING-PLATFORM-sub001/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bridgeChannel = "delivery:events"

// envelope carries the originating instance id so a relayed event is not
// broadcast twice on the instance that produced it.
type envelope struct {
	Origin string       `json:"origin"`
	Event  models.Event `json:"event"`
}

// Bridge spreads broadcasts across instances over Redis pub/sub. Every local
// broadcast is also published; a relay goroutine re-broadcasts events that
// originated elsewhere into the local hub.
type Bridge struct {
	hub    *Hub
	rdb    *redis.Client
	origin string
	logger *zap.SugaredLogger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBridge(h *Hub, rdb *redis.Client, logger *zap.SugaredLogger) *Bridge {
	return &Bridge{
		hub:    h,
		rdb:    rdb,
		origin: uuid.New().String(),
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (b *Bridge) Broadcast(event models.Event) {
	b.hub.Broadcast(event)

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		b.logger.Errorw("failed to marshal event envelope", "error", err)
		return
	}

	if err = b.rdb.Publish(context.Background(), bridgeChannel, payload).Err(); err != nil {
		b.logger.Errorw("failed to publish event", "error", err)
	}
}

func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	pubsub := b.rdb.Subscribe(ctx, bridgeChannel)

	go func() {
		defer close(b.done)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}

				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.logger.Warnw("failed to unmarshal event envelope", "error", err)
					continue
				}
				if env.Origin == b.origin {
					continue
				}

				b.hub.Broadcast(env.Event)
			}
		}
	}()
}

func (b *Bridge) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
}
