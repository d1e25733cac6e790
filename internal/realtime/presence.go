package realtime

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore remembers the last heartbeat of each user per room. A user is
// online while their last heartbeat is younger than the store's TTL.
type PresenceStore interface {
	Touch(ctx context.Context, roomID, userID string, at time.Time) error
	Leave(ctx context.Context, roomID, userID string) error
	Online(ctx context.Context, roomID string, now time.Time) ([]string, error)
}

// MemoryPresence keeps presence in process memory.
type MemoryPresence struct {
	mu    sync.Mutex
	ttl   time.Duration
	rooms map[string]map[string]time.Time
}

// NewMemoryPresence returns an in-memory store.
func NewMemoryPresence(ttl time.Duration) *MemoryPresence {
	return &MemoryPresence{ttl: ttl, rooms: make(map[string]map[string]time.Time)}
}

// Touch implements PresenceStore.
func (p *MemoryPresence) Touch(_ context.Context, roomID, userID string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	users, ok := p.rooms[roomID]
	if !ok {
		users = make(map[string]time.Time)
		p.rooms[roomID] = users
	}
	if at.After(users[userID]) {
		users[userID] = at
	}
	return nil
}

// Leave implements PresenceStore.
func (p *MemoryPresence) Leave(_ context.Context, roomID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.rooms[roomID], userID)
	if len(p.rooms[roomID]) == 0 {
		delete(p.rooms, roomID)
	}
	return nil
}

// Online implements PresenceStore. Expired entries are pruned.
func (p *MemoryPresence) Online(_ context.Context, roomID string, now time.Time) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := now.Add(-p.ttl)
	out := []string{}
	for id, seen := range p.rooms[roomID] {
		if seen.After(cutoff) {
			out = append(out, id)
		} else {
			delete(p.rooms[roomID], id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// RedisPresence keeps one sorted set per room scored by heartbeat time.
type RedisPresence struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisPresence returns a Redis-backed store.
func NewRedisPresence(client redis.UniversalClient, ttl time.Duration) *RedisPresence {
	return &RedisPresence{client: client, ttl: ttl}
}

func presenceKey(roomID string) string { return "presence:" + roomID }

// Touch implements PresenceStore.
func (p *RedisPresence) Touch(ctx context.Context, roomID, userID string, at time.Time) error {
	key := presenceKey(roomID)
	pipe := p.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: userID})
	// Idle rooms clean themselves up.
	pipe.Expire(ctx, key, 2*p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Leave implements PresenceStore.
func (p *RedisPresence) Leave(ctx context.Context, roomID, userID string) error {
	return p.client.ZRem(ctx, presenceKey(roomID), userID).Err()
}

// Online implements PresenceStore.
func (p *RedisPresence) Online(ctx context.Context, roomID string, now time.Time) ([]string, error) {
	key := presenceKey(roomID)
	cutoff := strconv.FormatInt(now.Add(-p.ttl).UnixMilli(), 10)
	if err := p.client.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err(); err != nil {
		return nil, err
	}
	ids, err := p.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "(" + cutoff, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
