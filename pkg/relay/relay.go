package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/config"
)

// Client is the part of *redis.Client used by the relay.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Relay mirrors encoded frames to a Redis channel from a background worker.
// Each frame is published on Channel and stored under Channel+":latest".
type Relay struct {
	client  Client
	channel string
	queue   chan []byte
	dropped atomic.Uint64
	log     zerolog.Logger

	close func() error
}

// New creates a relay publishing through client.
func New(client Client, channel string, queue int, log zerolog.Logger) *Relay {
	if queue <= 0 {
		queue = 1
	}
	return &Relay{
		client:  client,
		channel: channel,
		queue:   make(chan []byte, queue),
		log:     log.With().Str("component", "relay").Str("channel", channel).Logger(),
		close:   func() error { return nil },
	}
}

// Dial connects to Redis and returns a relay using that connection.
func Dial(ctx context.Context, cfg config.RelayConfig, log zerolog.Logger) (*Relay, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	r := New(rdb, cfg.Channel, cfg.Queue, log)
	r.close = rdb.Close
	return r, nil
}

// Publish queues msg without blocking. A full queue drops msg.
func (r *Relay) Publish(msg []byte) bool {
	select {
	case r.queue <- msg:
		return true
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.log.Warn().Uint64("dropped", n).Msg("relay queue full, dropping frame")
		}
		return false
	}
}

// Dropped returns how many frames were dropped because the queue was full.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

// Run publishes queued frames until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info().Msg("relay started")
	defer r.log.Info().Msg("relay stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			if err := r.send(ctx, msg); err != nil {
				r.log.Warn().Err(err).Msg("publish failed")
			}
		}
	}
}

func (r *Relay) send(ctx context.Context, msg []byte) error {
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return err
	}
	return r.client.Set(ctx, r.channel+":latest", msg, 0).Err()
}

// Close releases the Redis connection when the relay owns one.
func (r *Relay) Close() error {
	return r.close()
}
