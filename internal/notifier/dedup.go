package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/alaraf/fleet-finance/internal/repository"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Dedup store names accepted in configuration
const (
	DedupDatabase = "database"
	DedupRedis    = "redis"
)

// DedupStore hands out each notification slot once
type DedupStore interface {
	Claim(ctx context.Context, key domain.NotificationKey, n *domain.Notification) (bool, error)
	Release(ctx context.Context, key domain.NotificationKey) error
}

// NewDedupStore returns the configured store. The redis store needs a client.
func NewDedupStore(cfg *config.Config, repo *repository.NotificationLogRepository, rdb *redis.Client) (DedupStore, error) {
	switch cfg.Notifications.Dedup {
	case "", DedupDatabase:
		return NewDBDedup(repo), nil
	case DedupRedis:
		if rdb == nil {
			return nil, domain.NewConfigurationError("notifications.dedup", "redis dedup requires redis.enabled")
		}
		return NewRedisDedup(rdb, cfg.Redis.KeyPrefix, cfg.Notifications.DedupTTLDuration()), nil
	default:
		return nil, domain.NewConfigurationError("notifications.dedup", fmt.Sprintf("unknown store %q", cfg.Notifications.Dedup))
	}
}

// DBDedup claims slots through the notification log's unique index
type DBDedup struct {
	repo *repository.NotificationLogRepository
}

func NewDBDedup(repo *repository.NotificationLogRepository) *DBDedup {
	return &DBDedup{repo: repo}
}

func (d *DBDedup) Claim(ctx context.Context, key domain.NotificationKey, n *domain.Notification) (bool, error) {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode payload: %w", err)
	}
	return d.repo.Claim(ctx, &domain.NotificationLog{
		CompanyID:  n.CompanyID,
		ContractID: key.ContractID,
		Type:       key.Type,
		SentOn:     key.Day,
		Payload:    string(payload),
	})
}

func (d *DBDedup) Release(ctx context.Context, key domain.NotificationKey) error {
	return d.repo.Release(ctx, key.ContractID, key.Type, key.Day)
}

// RedisDedup claims slots with SETNX; keys expire after ttl
type RedisDedup struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDedup(rdb *redis.Client, prefix string, ttl time.Duration) *RedisDedup {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisDedup{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *RedisDedup) keyFor(key domain.NotificationKey) string {
	if d.prefix == "" {
		return "notification:" + key.String()
	}
	return d.prefix + ":notification:" + key.String()
}

func (d *RedisDedup) Claim(ctx context.Context, key domain.NotificationKey, n *domain.Notification) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.keyFor(key), string(n.CompanyID), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim notification slot: %w", err)
	}
	return ok, nil
}

func (d *RedisDedup) Release(ctx context.Context, key domain.NotificationKey) error {
	return d.rdb.Del(ctx, d.keyFor(key)).Err()
}

// NewRedisClient connects to redis and pings it
func NewRedisClient(ctx context.Context, redisURL string, logger *zap.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", opt.Addr))
	return rdb, nil
}
