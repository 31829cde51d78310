package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trafficgate/postback-gateway/internal/model"
)

// Job is one unit of delivery work: a single attempt of one event against
// one profile. Retries are Jobs with Attempt+1 under the same DeliveryID.
type Job struct {
	DeliveryID string      `json:"delivery_id"`
	ProfileID  int64       `json:"profile_id"`
	Event      model.Event `json:"event"`
	Attempt    int         `json:"attempt"`
	Synthetic  bool        `json:"synthetic,omitempty"`
}

// RetryScheduler is a time-delayed re-enqueue: backoff waits live in the
// queue, not in sleeping workers, so thousands of pending retries cost no
// worker capacity.
type RetryScheduler interface {
	Schedule(ctx context.Context, job Job, delay time.Duration) error
	PopDue(ctx context.Context, now time.Time, limit int) ([]Job, error)
}

const retryQueueKey = "pbgw:retry"

// RedisScheduler keeps pending retries in a sorted set scored by due time
// (unix millis). PopDue claims members with ZREM, so concurrent pollers
// never double-process a job.
type RedisScheduler struct {
	rdb *redis.Client
	key string
}

func NewRedisScheduler(rdb *redis.Client) *RedisScheduler {
	return &RedisScheduler{rdb: rdb, key: retryQueueKey}
}

var _ RetryScheduler = (*RedisScheduler)(nil)

func (s *RedisScheduler) Schedule(ctx context.Context, job Job, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal retry job: %w", err)
	}
	due := time.Now().Add(delay)
	return s.rdb.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: string(payload),
	}).Err()
}

func (s *RedisScheduler) PopDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	members, err := s.rdb.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(members))
	for _, m := range members {
		removed, err := s.rdb.ZRem(ctx, s.key, m).Result()
		if err != nil {
			return jobs, err
		}
		if removed == 0 {
			// another poller claimed it
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			// drop the unparseable member; it is already removed
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
