package presence

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/errors"
)

// RedisStore 基于 Redis 的心跳存储，多实例部署时共享
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisClient 按配置连接 Redis，配置了 URL 时优先使用
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var client *redis.Client
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigParse, "redis url")
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrDatabaseConnect, "redis ping")
	}
	return client, nil
}

// NewRedisStore 创建 Redis 存储，ttl 为键过期时间
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Touch 写入毫秒时间戳并刷新过期时间
func (r *RedisStore) Touch(ctx context.Context, roomID, playerID string, at time.Time) error {
	err := r.client.Set(ctx, Key(roomID, playerID), at.UnixMilli(), r.ttl).Err()
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "presence touch")
	}
	return nil
}

// LastSeen 读取最后心跳时间，键不存在或已过期时返回 false
func (r *RedisStore) LastSeen(ctx context.Context, roomID, playerID string) (time.Time, bool, error) {
	raw, err := r.client.Get(ctx, Key(roomID, playerID)).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, errors.Wrap(err, errors.ErrDatabaseQuery, "presence get")
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, errors.ErrDataIntegrity, "presence value %q", raw)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// Forget 删除心跳
func (r *RedisStore) Forget(ctx context.Context, roomID, playerID string) error {
	if err := r.client.Del(ctx, Key(roomID, playerID)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "presence forget")
	}
	return nil
}
