package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Broker carries events between publishers and hubs.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe calls fn for every event until ctx is done.
	Subscribe(ctx context.Context, fn func(Event)) error
}

// LocalBroker delivers events synchronously within one process.
type LocalBroker struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

// NewLocalBroker returns an in-process broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[int]func(Event))}
}

// Publish implements Broker.
func (b *LocalBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs {
		fn(ev)
	}
	return nil
}

// Subscribe implements Broker.
func (b *LocalBroker) Subscribe(ctx context.Context, fn func(Event)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
	return nil
}

// RedisBroker fans events out to every instance through Redis pub/sub.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisBroker publishes on channel.
func NewRedisBroker(client redis.UniversalClient, channel string) *RedisBroker {
	return &RedisBroker{client: client, channel: channel}
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

// Subscribe implements Broker. Undecodable payloads are skipped.
func (b *RedisBroker) Subscribe(ctx context.Context, fn func(Event)) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", b.channel).Msg("dropping malformed event")
				continue
			}
			fn(ev)
		}
	}
}
