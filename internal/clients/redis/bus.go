package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/sse"
	"github.com/dhyana-app/dhyana-backend/internal/utils"
)

// Bus fans SSE messages out across instances via Redis pub/sub, so a client
// streaming from one replica still sees changes made through another.
type Bus interface {
	Publish(ctx context.Context, msg sse.Message) error
	StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error
	Close() error
}

type bus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	sub     *goredis.PubSub
}

func NewBus(log *logger.Logger, rdb *goredis.Client) Bus {
	ch := strings.TrimSpace(utils.GetEnv("REDIS_CHANNEL", "sse", log))
	return &bus{
		log:     log.With("service", "RedisBus"),
		rdb:     rdb,
		channel: ch,
	}
}

func (b *bus) Publish(ctx context.Context, msg sse.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bus message: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish bus message: %w", err)
	}
	return nil
}

func (b *bus) StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error {
	b.sub = b.rdb.Subscribe(ctx, b.channel)
	if _, err := b.sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %q: %w", b.channel, err)
	}

	go func() {
		ch := b.sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg sse.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.log.Warn("Dropping malformed bus message", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *bus) Close() error {
	if b.sub != nil {
		return b.sub.Close()
	}
	return nil
}
