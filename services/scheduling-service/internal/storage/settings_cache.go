package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/schedule"
	"github.com/redis/go-redis/v9"
)

const settingsCacheKey = "clinic:settings:v1"

type SettingsStore interface {
	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, st Settings) (Settings, error)
}

// CachedSettings is a read-through Redis cache in front of the settings table.
// Redis failures fall back to the underlying store.
type CachedSettings struct {
	next   SettingsStore
	redis  redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedSettings(next SettingsStore, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedSettings {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSettings{next: next, redis: rdb, ttl: ttl, logger: logger}
}

func (c *CachedSettings) GetSettings(ctx context.Context) (Settings, error) {
	data, err := c.redis.Get(ctx, settingsCacheKey).Bytes()
	if err == nil {
		var st Settings
		if err := json.Unmarshal(data, &st); err == nil {
			return st, nil
		}
		c.logger.Warn("discarding undecodable settings cache entry")
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("settings cache read failed", "err", err)
	}

	st, err := c.next.GetSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	if data, err := json.Marshal(st); err == nil {
		if err := c.redis.Set(ctx, settingsCacheKey, data, c.ttl).Err(); err != nil {
			c.logger.Warn("settings cache write failed", "err", err)
		}
	}
	return st, nil
}

func (c *CachedSettings) UpdateSettings(ctx context.Context, st Settings) (Settings, error) {
	saved, err := c.next.UpdateSettings(ctx, st)
	if err != nil {
		return Settings{}, err
	}
	if err := c.redis.Del(ctx, settingsCacheKey).Err(); err != nil {
		c.logger.Warn("settings cache invalidation failed", "err", err)
	}
	return saved, nil
}

func (c *CachedSettings) ScheduleConfig(ctx context.Context) (schedule.Config, error) {
	st, err := c.GetSettings(ctx)
	return st.Schedule, err
}

func (c *CachedSettings) NotificationPrefs(ctx context.Context) (model.NotificationPrefs, error) {
	st, err := c.GetSettings(ctx)
	return st.Notifications, err
}
