package workers

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldEvaluationID = "evaluation_id"
	fieldEnqueuedAt   = "enqueued_at"

	defaultMaxLen = 10000
)

// RedisQueue publishes evaluation ids onto the worker stream.
type RedisQueue struct {
	rdb    *redis.Client
	stream string
}

func NewRedisQueue(rdb *redis.Client, stream string) *RedisQueue {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisQueue{rdb: rdb, stream: stream}
}

func (q *RedisQueue) Enqueue(ctx context.Context, evaluationID string) error {
	return q.rdb.XAdd(ctx, enqueueArgs(q.stream, evaluationID, time.Now())).Err()
}

func enqueueArgs(stream, evaluationID string, at time.Time) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: map[string]any{
			fieldEvaluationID: evaluationID,
			fieldEnqueuedAt:   strconv.FormatInt(at.UnixMilli(), 10),
		},
	}
}
