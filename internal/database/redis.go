package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"forumhub-backend/pkg/logger"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// RedisClient wraps the go-redis client with degraded-mode support: when
// Redis is down, presence bookkeeping is skipped instead of failing the
// realtime path, and a background health check brings it back.
type RedisClient struct {
	Client *redis.Client

	degradedMu    sync.RWMutex
	degraded      bool
	healthCheckMu sync.Mutex
}

// NewRedisDB creates a new Redis client from config.
func NewRedisDB(cfg *RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		DialTimeout:  cfg.Timeout,
	})
	return &RedisClient{Client: client}, nil
}

// Close closes the Redis client connection
func (r *RedisClient) Close() {
	_ = r.Client.Close()
}

// IsDegraded reports whether Redis is currently unavailable.
func (r *RedisClient) IsDegraded() bool {
	r.degradedMu.RLock()
	defer r.degradedMu.RUnlock()
	return r.degraded
}

func (r *RedisClient) setDegradedState(degraded bool) {
	r.degradedMu.Lock()
	defer r.degradedMu.Unlock()
	if r.degraded != degraded {
		r.degraded = degraded
		if degraded {
			logger.Warn("redis entered degraded mode")
		} else {
			logger.Info("redis recovered from degraded mode")
		}
	}
}

// HealthCheck pings Redis and updates the degraded state.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	r.healthCheckMu.Lock()
	defer r.healthCheckMu.Unlock()

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.Client.Ping(healthCtx).Err(); err != nil {
		r.setDegradedState(true)
		return fmt.Errorf("redis health check failed: %w", err)
	}
	r.setDegradedState(false)
	return nil
}

// StartHealthCheck runs periodic health checks until ctx is cancelled.
func (r *RedisClient) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.HealthCheck(context.Background()); err != nil {
					logger.Debug("redis health check", zap.Error(err))
				}
			}
		}
	}()
}

var errRedisDegraded = fmt.Errorf("redis is in degraded mode, operation skipped")

// SafeSet performs a SET, skipped in degraded mode.
func (r *RedisClient) SafeSet(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if r.IsDegraded() {
		return redis.NewStatusResult("", errRedisDegraded)
	}
	return r.Client.Set(ctx, key, value, expiration)
}

// SafeDel performs a DEL, skipped in degraded mode.
func (r *RedisClient) SafeDel(ctx context.Context, keys ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errRedisDegraded)
	}
	return r.Client.Del(ctx, keys...)
}

// SafeExpire performs an EXPIRE, skipped in degraded mode.
func (r *RedisClient) SafeExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if r.IsDegraded() {
		return redis.NewBoolResult(false, errRedisDegraded)
	}
	return r.Client.Expire(ctx, key, expiration)
}

// SafeExists performs an EXISTS, skipped in degraded mode.
func (r *RedisClient) SafeExists(ctx context.Context, keys ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errRedisDegraded)
	}
	return r.Client.Exists(ctx, keys...)
}

// SafeSAdd performs an SADD, skipped in degraded mode.
func (r *RedisClient) SafeSAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errRedisDegraded)
	}
	return r.Client.SAdd(ctx, key, members...)
}

// SafeSRem performs an SREM, skipped in degraded mode.
func (r *RedisClient) SafeSRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errRedisDegraded)
	}
	return r.Client.SRem(ctx, key, members...)
}

// SafeSMembers performs an SMEMBERS, skipped in degraded mode.
func (r *RedisClient) SafeSMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	if r.IsDegraded() {
		return redis.NewStringSliceResult(nil, errRedisDegraded)
	}
	return r.Client.SMembers(ctx, key)
}
