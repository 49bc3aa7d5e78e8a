package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Stream      string
	Group       string
	Consumer    string
	MaxAttempts int
}

// RedisQueue implements Queue on Redis: ready tasks live on a stream consumed
// through a consumer group, delayed tasks wait in a sorted set scored by their
// due time and are promoted onto the stream by a poll loop.
type RedisQueue struct {
	client      *redis.Client
	stream      string
	delayedSet  string
	dlqStream   string
	group       string
	consumer    string
	maxAttempts int
}

func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "export_tasks"
	}
	if cfg.Group == "" {
		cfg.Group = "export_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	q := &RedisQueue{
		client:      client,
		stream:      cfg.Stream,
		delayedSet:  cfg.Stream + ":delayed",
		dlqStream:   cfg.Stream + ":dlq",
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: cfg.MaxAttempts,
	}
	if err := q.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	if delay > 0 {
		due := float64(time.Now().Add(delay).Unix())
		if err := q.client.ZAdd(ctx, q.delayedSet, redis.Z{Score: due, Member: payload}).Err(); err != nil {
			return fmt.Errorf("enqueue delayed task: %w", err)
		}
		return nil
	}

	return q.push(ctx, payload)
}

func (q *RedisQueue) push(ctx context.Context, payload []byte) error {
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{"task": string(payload)},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, handler func(context.Context, Task) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	go q.promoteDelayed(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				task, parseErr := parseStreamTask(item)
				if parseErr != nil {
					_ = q.sendToDLQ(ctx, item, parseErr.Error())
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				handleErr := handler(ctx, task)
				if handleErr == nil {
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				task.Attempt++
				if task.Attempt >= q.maxAttempts {
					_ = q.sendToDLQ(ctx, item, handleErr.Error())
					_ = q.ackAndDelete(ctx, item.ID)
					continue
				}

				if payload, err := json.Marshal(task); err == nil {
					if requeueErr := q.push(ctx, payload); requeueErr != nil {
						_ = q.sendToDLQ(ctx, item, fmt.Sprintf("requeue failed: %v", requeueErr))
					}
				}
				_ = q.ackAndDelete(ctx, item.ID)
			}
		}
	}
}

// promoteDelayed moves due tasks from the sorted set onto the stream.
func (q *RedisQueue) promoteDelayed(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := fmt.Sprintf("%d", time.Now().Unix())
		members, err := q.client.ZRangeByScore(ctx, q.delayedSet, &redis.ZRangeBy{
			Min: "-inf",
			Max: now,
		}).Result()
		if err != nil {
			continue
		}

		for _, member := range members {
			// Remove first so a concurrent promoter cannot double-push.
			removed, err := q.client.ZRem(ctx, q.delayedSet, member).Result()
			if err != nil || removed == 0 {
				continue
			}
			_ = q.push(ctx, []byte(member))
		}
	}
}

func (q *RedisQueue) HasPending(ctx context.Context, kind Kind) (bool, error) {
	// Delayed tasks first.
	members, err := q.client.ZRange(ctx, q.delayedSet, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("scan delayed set: %w", err)
	}
	for _, member := range members {
		var task Task
		if json.Unmarshal([]byte(member), &task) == nil && task.Kind == kind {
			return true, nil
		}
	}

	// Then ready tasks still sitting on the stream.
	items, err := q.client.XRange(ctx, q.stream, "-", "+").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("scan stream: %w", err)
	}
	for _, item := range items {
		if task, err := parseStreamTask(item); err == nil && task.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (q *RedisQueue) ackAndDelete(ctx context.Context, streamID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func (q *RedisQueue) sendToDLQ(ctx context.Context, item redis.XMessage, errorMessage string) error {
	values := map[string]any{
		"stream_id": item.ID,
		"error":     errorMessage,
		"moved_at":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if raw, ok := item.Values["task"]; ok {
		values["task"] = raw
	}
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func parseStreamTask(item redis.XMessage) (Task, error) {
	raw, ok := item.Values["task"]
	if !ok {
		return Task{}, fmt.Errorf("missing task field")
	}

	var payload string
	switch casted := raw.(type) {
	case string:
		payload = casted
	case []byte:
		payload = string(casted)
	default:
		payload = fmt.Sprintf("%v", casted)
	}

	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return Task{}, fmt.Errorf("invalid task payload: %w", err)
	}
	return task, nil
}
