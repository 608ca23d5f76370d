package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/edulearn/backend/internal/config"
)

// InitRedis returns nil when Redis is unreachable; callers treat Redis as
// optional and degrade to single-instance behavior.
func InitRedis(cfg *config.RedisConfig, log *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis connection failed, continuing without Redis", zap.Error(err))
		rdb.Close()
		return nil
	}

	log.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return rdb
}
