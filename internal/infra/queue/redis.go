// File: internal/infra/queue/redis.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisQueue is a single-list upload queue: producers LPUSH serialized
// events, workers BRPOP them. Redis keeps delivery order FIFO per producer;
// the pipeline needs nothing stronger since jobs are independent.
type RedisQueue struct {
	cli   *redis.Client
	queue string
	log   zerolog.Logger
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

func NewRedisQueue(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*RedisQueue, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisQueue{
		cli:   cli,
		queue: opts.Queue,
		log:   logger.With().Str("component", "redis-queue").Logger(),
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, event *UploadEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.cli.LPush(ctx, q.queue, b).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next event. ok is false when the
// window elapsed with nothing to hand out.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*UploadEvent, bool, error) {
	res, err := q.cli.BRPop(ctx, timeout, q.queue).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dequeue event: %w", err)
	}
	var event UploadEvent
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		q.log.Error().Err(err).Str("raw", res[1]).Msg("dropping undecodable event")
		return nil, false, fmt.Errorf("decode event: %w", err)
	}
	return &event, true, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.cli.LLen(ctx, q.queue).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error { return q.cli.Ping(ctx).Err() }

func (q *RedisQueue) Close() error { return q.cli.Close() }
