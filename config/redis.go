// config/redis.go
package config

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// ConnectRedis returns a client for REDIS_ADDR, or nil when Redis is not
// configured or does not answer a ping. Callers fall back to in-process
// storage for reset tokens in that case.
func ConnectRedis(ctx context.Context, cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, reset tokens kept in memory")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis connection failed, reset tokens kept in memory")
		_ = client.Close()
		return nil
	}

	log.WithField("addr", cfg.RedisAddr).Info("Connected to Redis")
	return client
}
