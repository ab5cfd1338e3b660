package feed

import (
	"context"
	"strings"
	"time"

	clog "ripplechat/internal/log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const publishTimeout = 2 * time.Second

// RedisRelay carries append notifications between instances over a Redis
// pub/sub channel. Local subscribers are notified directly.
type RedisRelay struct {
	rdb      redis.UniversalClient
	channel  string
	instance string
	local    *Hub
	log      zerolog.Logger
}

func NewRedisRelay(rdb redis.UniversalClient, channel string, local *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: channel, instance: uuid.NewString(), local: local, log: clog.Component("feed-relay")}
}

func (r *RedisRelay) Notify(conversationID string) {
	r.local.Notify(conversationID)
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, encode(r.instance, conversationID)).Err(); err != nil {
		r.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("publish failed")
	}
}

// Run delivers notifications published by other instances until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	origin, conversationID, ok := decode(payload)
	if !ok {
		r.log.Warn().Str("payload", payload).Msg("malformed payload")
		return
	}
	if origin == r.instance {
		return
	}
	r.local.Notify(conversationID)
}

func encode(instance, conversationID string) string {
	return instance + "|" + conversationID
}

func decode(payload string) (instance, conversationID string, ok bool) {
	instance, conversationID, ok = strings.Cut(payload, "|")
	return instance, conversationID, ok && instance != "" && conversationID != ""
}
