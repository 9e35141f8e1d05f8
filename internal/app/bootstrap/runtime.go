package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/barberia-elite/internal/config"
	"github.com/wolfman30/barberia-elite/internal/storage"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

// SessionKeyPrefix namespaces per-session keys in Redis.
const SessionKeyPrefix = "barberia:session"

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildStoreFactory picks the per-session store. The Redis backend falls back
// to memory when client is nil.
func BuildStoreFactory(cfg *appconfig.Config, client *redis.Client, logger *logging.Logger) storage.Factory {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || cfg.StoreBackend != appconfig.StoreRedis {
		return storage.MemoryFactory()
	}
	if client == nil {
		logger.Warn("redis store requested but redis is unavailable, using memory store")
		return storage.MemoryFactory()
	}
	return storage.RedisFactory(client, SessionKeyPrefix, cfg.StoreTTL)
}
