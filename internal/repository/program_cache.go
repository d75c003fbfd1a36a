package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	programCacheKeyPrefix = "program:view:"
	programCacheTTL       = 10 * time.Minute
)

// ProgramCache 缓存课程公开视图，Redis 未配置时所有操作为空操作
type ProgramCache struct {
	Redis *redis.Client
}

func NewProgramCache(rdb *redis.Client) *ProgramCache {
	return &ProgramCache{Redis: rdb}
}

func programCacheKey(id uint) string {
	return fmt.Sprintf("%s%d", programCacheKeyPrefix, id)
}

// Get 命中时反序列化到 dest 并返回 true
func (c *ProgramCache) Get(ctx context.Context, id uint, dest interface{}) (bool, error) {
	if c == nil || c.Redis == nil {
		return false, nil
	}
	val, err := c.Redis.Get(ctx, programCacheKey(id)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *ProgramCache) Set(ctx context.Context, id uint, value interface{}) error {
	if c == nil || c.Redis == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, programCacheKey(id), data, programCacheTTL).Err()
}

func (c *ProgramCache) Invalidate(ctx context.Context, id uint) error {
	if c == nil || c.Redis == nil {
		return nil
	}
	return c.Redis.Del(ctx, programCacheKey(id)).Err()
}
