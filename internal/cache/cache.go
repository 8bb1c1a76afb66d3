/*
Package cache 提供 lookup.Cache 的多种实现：进程内内存、Redis、Memcache。
调用方不关心缓存在哪里，只关心它存在并能加速查询。

缓存只保证最终一致，过期由各后端的 TTL 决定。
*/
package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"similarity_engine/internal/model"
)

// ErrNotFound 缓存中没有该键（如在 Contains 与 FetchTracks 之间过期）
var ErrNotFound = errors.New("cache: key not found")

// DefaultKeyPrefix 缓存键前缀
const DefaultKeyPrefix = "similar:"

// Config 描述一个缓存后端
type Config struct {
	Backend   string        `yaml:"backend"` // memory, redis, memcache
	TTL       time.Duration `yaml:"ttl"`     // 0 表示不过期
	KeyPrefix string        `yaml:"key_prefix"`
	// Instrument 为 true 时用 OpenTelemetry 计数器包装后端
	Instrument bool `yaml:"instrument"`

	Memory struct {
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
	} `yaml:"memory"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Memcache struct {
		Addrs []string `yaml:"addrs"`
	} `yaml:"memcache"`
}

func (c Config) prefix() string {
	if c.KeyPrefix == "" {
		return DefaultKeyPrefix
	}
	return c.KeyPrefix
}

func key(prefix string, id model.ItemID) string {
	return prefix + string(id)
}

func notFound(k string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, k)
}

// 包一层，gob 不能直接编码顶层 nil 切片
type tracksEnvelope struct {
	V []model.Item
}

// encodeTracks 用 gob 编码，NaN、±Inf 分数可以原样往返
func encodeTracks(tracks []model.Item) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tracksEnvelope{V: tracks}); err != nil {
		return nil, fmt.Errorf("failed to encode tracks: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeTracks(k string, data []byte) ([]model.Item, error) {
	var env tracksEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode cached tracks for %s: %w", k, err)
	}
	if env.V == nil {
		env.V = []model.Item{}
	}
	return env.V, nil
}
