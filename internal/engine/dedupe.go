package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper guards against re-processing the same (clickid, event type)
// pair. Seen and Mark are separate: an event is marked only after its
// fan-out completed, so a Process that failed mid-way leaves the ref
// unmarked and the replayed message is processed again instead of being
// dropped as a duplicate. Reprocessing is business-safe (receiving
// trackers dedupe by clickid), so the guard only saves outbound traffic;
// a Redis outage degrades to "not seen".
type Deduper interface {
	Seen(ctx context.Context, ref string) (bool, error)
	Mark(ctx context.Context, ref string) error
}

const dedupePrefix = "pbgw:seen:"

type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

var _ Deduper = (*RedisDeduper)(nil)

func (d *RedisDeduper) Seen(ctx context.Context, ref string) (bool, error) {
	n, err := d.rdb.Exists(ctx, dedupePrefix+ref).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, ref string) error {
	return d.rdb.Set(ctx, dedupePrefix+ref, 1, d.ttl).Err()
}
