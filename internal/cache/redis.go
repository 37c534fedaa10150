package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client      *redis.Client
	profilesTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, profilesTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:      redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		profilesTTL: profilesTTL,
	}
}

func (c *RedisCache) GetProfiles(ctx context.Context) ([]domain.Profile, error) {
	data, err := c.client.Get(ctx, profilesKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var profiles []domain.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (c *RedisCache) SetProfiles(ctx context.Context, profiles []domain.Profile) error {
	payload, err := json.Marshal(profiles)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profilesKey(), payload, c.profilesTTL).Err()
}

// AcquirePaymentLock takes a short-lived cross-process lock on a payment
// intent, so near-simultaneous retries from different instances cannot race
// the persistent duplicate check.
func (c *RedisCache) AcquirePaymentLock(ctx context.Context, paymentIntentID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, paymentLockKey(paymentIntentID), "locked", ttl).Result()
}

func (c *RedisCache) ReleasePaymentLock(ctx context.Context, paymentIntentID string) error {
	return c.client.Del(ctx, paymentLockKey(paymentIntentID)).Err()
}

func profilesKey() string {
	return "cache:profiles"
}

func paymentLockKey(paymentIntentID string) string {
	return "lock:payment:" + paymentIntentID
}
