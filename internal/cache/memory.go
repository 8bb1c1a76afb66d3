package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"similarity_engine/internal/model"
)

// Memory 基于 go-cache 的进程内缓存，读写都做副本隔离
type Memory struct {
	c      *gocache.Cache
	prefix string
}

// NewMemory 创建内存缓存，ttl 为 0 表示不过期
func NewMemory(ttl, cleanupInterval time.Duration, prefix string) *Memory {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Memory{
		c:      gocache.New(ttl, cleanupInterval),
		prefix: prefix,
	}
}

func (m *Memory) Contains(ctx context.Context, id model.ItemID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := m.c.Get(key(m.prefix, id))
	return ok, nil
}

func (m *Memory) FetchTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := key(m.prefix, id)
	v, ok := m.c.Get(k)
	if !ok {
		return nil, notFound(k)
	}
	return model.Clone(v.([]model.Item)), nil
}

func (m *Memory) Add(ctx context.Context, id model.ItemID, tracks []model.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.c.Set(key(m.prefix, id), model.Clone(tracks), gocache.DefaultExpiration)
	return nil
}

// Delete 使条目失效
func (m *Memory) Delete(id model.ItemID) {
	m.c.Delete(key(m.prefix, id))
}

// Len 返回当前条目数（可能包含尚未清理的过期条目）
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
