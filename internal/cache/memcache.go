package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"similarity_engine/internal/model"
)

// memcacheClient 是 *memcache.Client 中用到的部分
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// maxRelativeExpiration memcached 把超过 30 天的 Expiration 当作 Unix 时间戳
const maxRelativeExpiration = 30 * 24 * time.Hour

// Memcache 以 gob 编码把相似结果存入 memcached
type Memcache struct {
	client memcacheClient
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewMemcache 连接 addrs 指定的 memcached 节点
func NewMemcache(addrs []string, ttl time.Duration, prefix string) *Memcache {
	return newMemcache(memcache.New(addrs...), ttl, prefix)
}

func newMemcache(client memcacheClient, ttl time.Duration, prefix string) *Memcache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Memcache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		now:    time.Now,
	}
}

// expiration 把 ttl 换算成 memcache.Item.Expiration
// 30 天以内用相对秒数，更长的用绝对时间戳
func (m *Memcache) expiration() int32 {
	if m.ttl <= 0 {
		return 0
	}
	if m.ttl <= maxRelativeExpiration {
		secs := int32(m.ttl / time.Second)
		if secs == 0 {
			secs = 1
		}
		return secs
	}
	deadline := m.now().Add(m.ttl).Unix()
	if deadline > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(deadline)
}

func (m *Memcache) Contains(ctx context.Context, id model.ItemID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := m.client.Get(m.key(id))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memcache get: %w", err)
	}
	return true, nil
}

func (m *Memcache) FetchTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := m.key(id)
	item, err := m.client.Get(k)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, notFound(k)
	}
	if err != nil {
		return nil, fmt.Errorf("memcache get: %w", err)
	}

	return decodeTracks(k, item.Value)
}

func (m *Memcache) Add(ctx context.Context, id model.ItemID, tracks []model.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeTracks(tracks)
	if err != nil {
		return err
	}
	err = m.client.Set(&memcache.Item{
		Key:        m.key(id),
		Value:      data,
		Expiration: m.expiration(),
	})
	if err != nil {
		return fmt.Errorf("memcache set: %w", err)
	}
	return nil
}

// Delete 使条目失效，键不存在不算错误
func (m *Memcache) Delete(id model.ItemID) error {
	err := m.client.Delete(m.key(id))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcache delete: %w", err)
	}
	return nil
}

// memcached 的键最长 250 字节且不能含空白或控制字符，不合法的键用 SHA-1 摘要代替
func (m *Memcache) key(id model.ItemID) string {
	k := key(m.prefix, id)
	if validMemcacheKey(k) {
		return k
	}
	sum := sha1.Sum([]byte(k))
	return m.prefix + hex.EncodeToString(sum[:])
}

func validMemcacheKey(k string) bool {
	if len(k) == 0 || len(k) > 250 {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] <= ' ' || k[i] == 0x7f {
			return false
		}
	}
	return true
}
