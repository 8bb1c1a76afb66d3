package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"similarity_engine/internal/model"
)

// Redis 以 gob 编码把相似结果存入 Redis
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedis 使用已有客户端创建缓存，ttl 为 0 表示不过期
func NewRedis(client redis.UniversalClient, ttl time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

// DialRedis 解析 redis:// URL 并检查连通性
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Contains(ctx context.Context, id model.ItemID) (bool, error) {
	n, err := r.client.Exists(ctx, key(r.prefix, id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) FetchTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	k := key(r.prefix, id)
	data, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(k)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return decodeTracks(k, data)
}

func (r *Redis) Add(ctx context.Context, id model.ItemID, tracks []model.Item) error {
	data, err := encodeTracks(tracks)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key(r.prefix, id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete 使条目失效
func (r *Redis) Delete(ctx context.Context, id model.ItemID) error {
	return r.client.Del(ctx, key(r.prefix, id)).Err()
}

// Close 关闭底层客户端
func (r *Redis) Close() error {
	return r.client.Close()
}
