package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"similarity_engine/internal/logger"
	"similarity_engine/internal/lookup"
	"similarity_engine/internal/model"
)

// RetryConfig 控制 RetryStore 的退避策略
type RetryConfig struct {
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// RetryStore 对下游 Store 的临时失败做指数退避重试
// model.ErrNotFound、model.ErrInvalidArgument 以及 ctx 结束不重试
type RetryStore struct {
	next lookup.Store
	cfg  RetryConfig
}

// NewRetryStore 包装 next
func NewRetryStore(next lookup.Store, cfg RetryConfig) *RetryStore {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	return &RetryStore{next: next, cfg: cfg}
}

func (s *RetryStore) FindSimilarTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.InitialInterval
	eb.MaxInterval = s.cfg.MaxInterval
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, s.cfg.MaxRetries)
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.RetryWithData(func() ([]model.Item, error) {
		attempt++
		items, err := s.next.FindSimilarTracks(ctx, id)
		if err == nil {
			return items, nil
		}
		if permanent(ctx, err) {
			return nil, backoff.Permanent(err)
		}
		logger.Warn("store lookup for %s failed (attempt %d): %v", id, attempt, err)
		return nil, err
	}, b)
}

func permanent(ctx context.Context, err error) bool {
	return errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrInvalidArgument) ||
		ctx.Err() != nil
}
