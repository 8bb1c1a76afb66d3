package cache

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/metric"

	"similarity_engine/internal/lookup"
)

// Factory 根据配置创建一个缓存后端，返回的 io.Closer 可能为 nil
type Factory func(ctx context.Context, cfg Config) (lookup.Cache, io.Closer, error)

// Registry 缓存后端注册表
type Registry struct {
	factories map[string]Factory
}

// NewRegistry 创建注册表并注册内置后端
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("memory", func(_ context.Context, cfg Config) (lookup.Cache, io.Closer, error) {
		return NewMemory(cfg.TTL, cfg.Memory.CleanupInterval, cfg.prefix()), nil, nil
	})

	r.Register("redis", func(ctx context.Context, cfg Config) (lookup.Cache, io.Closer, error) {
		if cfg.Redis.URL == "" {
			return nil, nil, fmt.Errorf("redis cache requires 'redis.url'")
		}
		client, err := DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		c := NewRedis(client, cfg.TTL, cfg.prefix())
		return c, c, nil
	})

	r.Register("memcache", func(_ context.Context, cfg Config) (lookup.Cache, io.Closer, error) {
		if len(cfg.Memcache.Addrs) == 0 {
			return nil, nil, fmt.Errorf("memcache cache requires 'memcache.addrs'")
		}
		return NewMemcache(cfg.Memcache.Addrs, cfg.TTL, cfg.prefix()), nil, nil
	})

	return r
}

// Register 注册一个新的后端类型
func (r *Registry) Register(backend string, factory Factory) {
	r.factories[backend] = factory
}

// New 按 cfg.Backend 创建缓存，cfg.Instrument 为 true 时包装指标
func (r *Registry) New(ctx context.Context, cfg Config, provider metric.MeterProvider) (lookup.Cache, io.Closer, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "memory"
	}
	factory, ok := r.factories[backend]
	if !ok {
		return nil, nil, fmt.Errorf("unknown cache backend: %s", backend)
	}

	c, closer, err := factory(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s cache: %w", backend, err)
	}
	if !cfg.Instrument {
		return c, closer, nil
	}

	inst, err := NewInstrumented(c, backend, provider)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}
	return inst, closer, nil
}
