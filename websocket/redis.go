package websocket

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"onechurch/logger"
)

const relayChannel = "onechurch:events"

type relayMessage struct {
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// RedisRelay publishes events on a Redis channel so that every instance
// subscribed to it delivers them to its own hub.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

var _ Broadcaster = (*RedisRelay)(nil)

func NewRedisRelay(url string, hub *Hub) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return &RedisRelay{client: client, hub: hub, channel: relayChannel}, nil
}

// Emit publishes the event. When Redis is unreachable it falls back to the
// local hub so this instance's clients still get it.
func (r *RedisRelay) Emit(room, event string, payload interface{}) {
	frame := encode(event, payload)
	if frame == nil {
		return
	}
	data, err := json.Marshal(relayMessage{Room: room, Frame: frame})
	if err != nil {
		logger.Error.Printf("❌ Error marshaling relay message: %v", err)
		return
	}
	if err := r.client.Publish(r.channel, data).Err(); err != nil {
		logger.Warn.Printf("Redis publish failed, delivering locally: %v", err)
		r.hub.Deliver(room, frame)
	}
}

// Run subscribes to the channel and feeds the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(); err != nil {
		return errors.Wrap(err, "subscribe")
	}
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var rm relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				logger.Warn.Printf("Dropping malformed relay message: %v", err)
				continue
			}
			r.hub.Deliver(rm.Room, rm.Frame)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
