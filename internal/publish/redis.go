// Package publish pushes rendered sensor states to Redis.
//
// Each entity state is stored under "<prefix>:state:<entity_id>" and the
// states of an entry are published as one JSON array on
// "<prefix>:<entry_id>:states" after every refresh.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/sensor"
)

// DefaultPrefix namespaces keys and channels.
const DefaultPrefix = "bonusdrive"

// Connect returns a client for addr, or nil when addr is empty.
func Connect(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

// Redis publishes sensor states.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedis constructs a publisher. A zero ttl keeps states until cleared.
func NewRedis(rdb redis.Cmdable, prefix string, ttl time.Duration, log *zap.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

// StateKey is the key an entity state is stored under.
func (r *Redis) StateKey(entityID string) string { return r.prefix + ":state:" + entityID }

// Channel is the channel the states of an entry are published on.
func (r *Redis) Channel(entryID string) string { return r.prefix + ":" + entryID + ":states" }

// Publish stores every state and announces the set on the entry channel.
func (r *Redis) Publish(ctx context.Context, entryID string, states []sensor.State) error {
	payload, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("marshal states: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, st := range states {
			b, err := json.Marshal(st)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", st.EntityID, err)
			}
			p.Set(ctx, r.StateKey(st.EntityID), b, r.ttl)
		}
		p.Publish(ctx, r.Channel(entryID), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	r.log.Debug("states published", zap.String("entry_id", entryID), zap.Int("count", len(states)))
	return nil
}

// Clear removes the stored states of the given entities.
func (r *Redis) Clear(ctx context.Context, entryID string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(entityIDs))
	for _, id := range entityIDs {
		keys = append(keys, r.StateKey(id))
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear %s: %w", entryID, err)
	}
	return nil
}
