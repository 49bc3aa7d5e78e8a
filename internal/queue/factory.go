package queue

import (
	"context"
	"time"

	"go-export/internal/config"

	"go.uber.org/zap"
)

// NewQueue picks the queue backend from configuration: Redis when an address
// is set, the in-process queue otherwise. Single-instance deployments work
// fine without Redis; the local queue just loses tasks on restart.
func NewQueue(cfg *config.Config, logger *zap.Logger) (Queue, error) {
	if cfg.RedisAddr == "" {
		logger.Info("no redis address configured, using in-process queue")
		return NewLocalQueue(256, 3, logger), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := NewRedisQueue(ctx, RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.QueueStream,
		Group:    cfg.QueueGroup,
		Consumer: cfg.QueueConsumer,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("redis queue connected",
		zap.String("addr", cfg.RedisAddr),
		zap.String("stream", cfg.QueueStream))
	return q, nil
}
