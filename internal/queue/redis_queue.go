package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is the Queue backed by a single shared Redis instance, as
// described in spec.md §2 ("durable job store... with a process-wide
// rate-limit counter"). Job records are JSON-encoded strings; the waiting
// set is a Redis list so pops are FIFO; completed/failed jobs are indexed
// by a sorted set (score = finish time) so TrimRetention can cheaply find
// the oldest entries once a state exceeds its cap.
type RedisQueue struct {
	rdb *redis.Client
}

const (
	keyWaiting   = "demo2apk:queue:waiting"
	keyActiveSet = "demo2apk:queue:active"
	keyJobPrefix = "demo2apk:job:"
	keyCompleted = "demo2apk:queue:completed" // sorted set, score=finishedAt unix
	keyFailed    = "demo2apk:queue:failed"
	keyRatePrefix = "demo2apk:ratelimit:"
)

func jobKey(id string) string { return keyJobPrefix + id }

// NewRedisQueue dials the given Redis URL (e.g. "redis://localhost:6379")
// and returns a ready-to-use Queue.
func NewRedisQueue(ctx context.Context, redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisQueue{rdb: rdb}, nil
}

func (q *RedisQueue) Close() error { return q.rdb.Close() }

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) (*Job, bool, error) {
	job := &Job{
		SchemaVersion: CurrentSchemaVersion,
		Task:          task,
		State:         StateWaiting,
		EnqueuedAt:    time.Now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling job: %w", err)
	}

	// SetNX gives us idempotent admission: if the job already exists this
	// is a no-op and we return the existing record.
	ok, err := q.rdb.SetNX(ctx, jobKey(task.ID), data, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("enqueue SETNX: %w", err)
	}
	if !ok {
		existing, err := q.Get(ctx, task.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := q.rdb.RPush(ctx, keyWaiting, task.ID).Err(); err != nil {
		return nil, false, fmt.Errorf("enqueue RPUSH: %w", err)
	}
	return job, true, nil
}

// leaseScript atomically pops the oldest waiting job id and marks it
// active, so two workers racing to lease can never both win the same job:
// LPOP is itself atomic in Redis, and everything after it only touches the
// id this caller alone popped.
const leaseScript = `
local id = redis.call('LPOP', KEYS[1])
if not id then
  return false
end
redis.call('SADD', KEYS[2], id)
return id
`

func (q *RedisQueue) Lease(ctx context.Context) (*Job, error) {
	res, err := q.rdb.Eval(ctx, leaseScript, []string{keyWaiting, keyActiveSet}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("lease script: %w", err)
	}
	id, ok := res.(string)
	if !ok || id == "" {
		return nil, nil
	}

	job, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		// The job record vanished (e.g. deleted concurrently) between
		// being queued and leased; drop it from the active set and move on.
		q.rdb.SRem(ctx, keyActiveSet, id)
		return nil, nil
	}

	now := time.Now()
	job.State = StateActive
	job.LeasedAt = &now
	if err := q.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (q *RedisQueue) UpdateProgress(ctx context.Context, jobID string, p Progress) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil // job was deleted/expired mid-build; nothing to update
	}
	job.Progress = p
	if p.Percent > job.MaxPercent {
		job.MaxPercent = p.Percent
	}
	return q.save(ctx, job)
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string, result Result) error {
	return q.finish(ctx, jobID, StateCompleted, &result, "")
}

func (q *RedisQueue) Fail(ctx context.Context, jobID string, message string) error {
	return q.finish(ctx, jobID, StateFailed, nil, message)
}

func (q *RedisQueue) finish(ctx context.Context, jobID string, state State, result *Result, failMessage string) error {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	now := time.Now()
	job.State = state
	job.FinishedAt = &now
	if result != nil {
		job.Result = result
	} else {
		job.Result = &Result{Success: false, Error: failMessage}
	}

	if err := q.save(ctx, job); err != nil {
		return err
	}

	q.rdb.SRem(ctx, keyActiveSet, jobID)

	retention := ArtifactRetention(job.DisplayStatus() == StateFailed)
	q.rdb.Expire(ctx, jobKey(jobID), retention)

	index := keyCompleted
	if job.DisplayStatus() == StateFailed {
		index = keyFailed
	}
	q.rdb.ZAdd(ctx, index, redis.Z{Score: float64(now.Unix()), Member: jobID})

	return nil
}

func (q *RedisQueue) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", jobID, err)
	}
	return &job, nil
}

func (q *RedisQueue) Delete(ctx context.Context, jobID string) (*Job, error) {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	if job.State == StateActive {
		return job, ErrActiveJob
	}

	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, jobKey(jobID))
	pipe.LRem(ctx, keyWaiting, 0, jobID)
	pipe.SRem(ctx, keyActiveSet, jobID)
	pipe.ZRem(ctx, keyCompleted, jobID)
	pipe.ZRem(ctx, keyFailed, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return job, fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return job, nil
}

func (q *RedisQueue) QueuePosition(ctx context.Context, jobID string) (int, int, error) {
	ids, err := q.rdb.LRange(ctx, keyWaiting, 0, int64(maxQueuePositionScan-1)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("queue position scan: %w", err)
	}
	position := 0
	for i, id := range ids {
		if id == jobID {
			position = i + 1
			break
		}
	}

	waitingTotal, err := q.rdb.LLen(ctx, keyWaiting).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("queue length: %w", err)
	}
	activeTotal, err := q.rdb.SCard(ctx, keyActiveSet).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("active count: %w", err)
	}

	return position, int(waitingTotal + activeTotal), nil
}

func (q *RedisQueue) RateLimitAllow(ctx context.Context, key string, capacity int, window time.Duration) (bool, time.Duration, error) {
	rkey := keyRatePrefix + key
	count, err := q.rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		q.rdb.Expire(ctx, rkey, window)
	}
	if count > int64(capacity) {
		ttl, err := q.rdb.TTL(ctx, rkey).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

func (q *RedisQueue) TrimRetention(ctx context.Context) error {
	for _, idx := range []string{keyCompleted, keyFailed} {
		if err := q.trimIndex(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func (q *RedisQueue) trimIndex(ctx context.Context, index string) error {
	total, err := q.rdb.ZCard(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("zcard %s: %w", index, err)
	}
	if total <= maxRetainedPerState {
		return nil
	}
	overflow := total - maxRetainedPerState
	ids, err := q.rdb.ZRange(ctx, index, 0, overflow-1).Result()
	if err != nil {
		return fmt.Errorf("zrange %s: %w", index, err)
	}
	for _, id := range ids {
		q.rdb.Del(ctx, jobKey(id))
	}
	return q.rdb.ZRemRangeByRank(ctx, index, 0, overflow-1).Err()
}

func (q *RedisQueue) save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job %s: %w", job.ID(), err)
	}
	if err := q.rdb.Set(ctx, jobKey(job.ID()), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID(), err)
	}
	return nil
}
