// Package store 提供相似曲目的权威数据源：本地 JSONL 文件、PostgreSQL 以及 LLM。
package store

import (
	"context"
	"fmt"
	"io"

	"similarity_engine/internal/lookup"
	"similarity_engine/pkg/llm"
)

var (
	_ lookup.Store = (*FileStore)(nil)
	_ lookup.Store = (*PostgresStore)(nil)
	_ lookup.Store = (*LLMStore)(nil)
	_ lookup.Store = (*RetryStore)(nil)
)

// Config 存储后端配置
type Config struct {
	Backend string `yaml:"backend"` // file | postgres | llm

	// file
	Path string `yaml:"path"`

	// postgres
	DSN          string `yaml:"dsn"`
	Table        string `yaml:"table"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	EnsureSchema bool   `yaml:"ensure_schema"`

	// llm
	LLM   llm.Config `yaml:"llm"`
	Count int        `yaml:"count"`

	// MaxRetries 为 0 时不包装 RetryStore
	Retry RetryConfig `yaml:"retry"`
}

// Factory 根据配置创建存储后端，返回的 io.Closer 可能为 nil
type Factory func(ctx context.Context, cfg Config) (lookup.Store, io.Closer, error)

// Registry 存储后端注册表
type Registry struct {
	factories map[string]Factory
}

// NewRegistry 创建注册表并注册内置后端
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("file", func(_ context.Context, cfg Config) (lookup.Store, io.Closer, error) {
		path := cfg.Path
		if path == "" {
			path = "data/similar_tracks.jsonl"
		}
		s, err := NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	})

	r.Register("postgres", func(ctx context.Context, cfg Config) (lookup.Store, io.Closer, error) {
		db, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxOpenConns)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewPostgresStore(db, cfg.Table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if cfg.EnsureSchema {
			if err := s.EnsureSchema(ctx); err != nil {
				s.Close()
				return nil, nil, err
			}
		}
		return s, s, nil
	})

	r.Register("llm", func(_ context.Context, cfg Config) (lookup.Store, io.Closer, error) {
		if cfg.LLM.Model == "" {
			return nil, nil, fmt.Errorf("llm store requires 'llm.model'")
		}
		return NewLLMStore(llm.NewOpenAIClient(cfg.LLM), cfg.Count), nil, nil
	})

	return r
}

// Register 注册一个新的后端类型
func (r *Registry) Register(backend string, factory Factory) {
	r.factories[backend] = factory
}

// New 按 cfg.Backend 创建存储，cfg.Retry.MaxRetries > 0 时包装重试
func (r *Registry) New(ctx context.Context, cfg Config) (lookup.Store, io.Closer, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "file"
	}
	factory, ok := r.factories[backend]
	if !ok {
		return nil, nil, fmt.Errorf("unknown store backend: %s", backend)
	}

	s, closer, err := factory(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s store: %w", backend, err)
	}
	if cfg.Retry.MaxRetries > 0 {
		s = NewRetryStore(s, cfg.Retry)
	}
	return s, closer, nil
}
