package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueueConfig configures RedisQueue.
type RedisQueueConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration

	// Prefix namespaces the queue keys.
	// Default: "courier:exports"
	Prefix string

	// Wait is how long Claim blocks before returning ErrQueueEmpty.
	// Default: 2 seconds
	Wait time.Duration
}

// RedisQueue is a Queue shared by several processes. Pending ids live in a
// list and claimed ids are moved atomically to a processing list with LMOVE
// semantics, so an id is handed to exactly one worker.
type RedisQueue struct {
	client *redis.Client
	prefix string
	wait   time.Duration
	logger *slog.Logger
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis queue: address is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis queue: failed to ping server: %w", err)
	}
	return NewRedisQueueFromClient(client, cfg), nil
}

// NewRedisQueueFromClient wraps an existing client. Close closes it.
func NewRedisQueueFromClient(client *redis.Client, cfg RedisQueueConfig) *RedisQueue {
	if cfg.Prefix == "" {
		cfg.Prefix = "courier:exports"
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 2 * time.Second
	}
	return &RedisQueue{
		client: client,
		prefix: cfg.Prefix,
		wait:   cfg.Wait,
		logger: slog.Default().With("component", "export.job.redis_queue"),
	}
}

func (q *RedisQueue) pendingKey() string    { return q.prefix + ":pending" }
func (q *RedisQueue) processingKey() string { return q.prefix + ":processing" }
func (q *RedisQueue) queuedKey() string     { return q.prefix + ":queued" }

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	added, err := q.client.SAdd(ctx, q.queuedKey(), jobID).Result()
	if err != nil {
		return fmt.Errorf("redis queue: enqueue %s: %w", jobID, err)
	}
	if added == 0 {
		return nil
	}
	if err := q.client.LPush(ctx, q.pendingKey(), jobID).Err(); err != nil {
		q.client.SRem(ctx, q.queuedKey(), jobID)
		return fmt.Errorf("redis queue: enqueue %s: %w", jobID, err)
	}
	return nil
}

// Claim implements Queue.
func (q *RedisQueue) Claim(ctx context.Context) (string, error) {
	id, err := q.client.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", q.wait).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}
	if errors.Is(err, redis.ErrClosed) {
		return "", ErrQueueClosed
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("redis queue: claim: %w", err)
	}
	if err := q.client.SRem(ctx, q.queuedKey(), id).Err(); err != nil {
		q.logger.Warn("Failed to clear queued marker", "job_id", id, "error", err)
	}
	return id, nil
}

// Ack implements Queue.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	if err := q.client.LRem(ctx, q.processingKey(), 1, jobID).Err(); err != nil {
		return fmt.Errorf("redis queue: ack %s: %w", jobID, err)
	}
	return nil
}

// Nack implements Queue.
func (q *RedisQueue) Nack(ctx context.Context, jobID string) error {
	if err := q.Ack(ctx, jobID); err != nil {
		return err
	}
	return q.Enqueue(ctx, jobID)
}

// Recover moves ids left in the processing list by a crashed process back
// to pending. It returns the number of ids moved.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		id, err := q.client.LMove(ctx, q.processingKey(), q.pendingKey(), "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("redis queue: recover: %w", err)
		}
		q.client.SAdd(ctx, q.queuedKey(), id)
		n++
	}
}

// Ping checks the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close implements Queue.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
