// Package lookup 实现相似条目的 cache-aside 读穿查询
package lookup

import (
	"context"
	"fmt"

	"similarity_engine/internal/model"
)

// DefaultMaxAmount 未指定数量上限时返回的最大条目数
const DefaultMaxAmount = 100

// Cache 定义查询服务依赖的缓存能力
type Cache interface {
	Contains(ctx context.Context, id model.ItemID) (bool, error)
	// FetchTracks 仅在 Contains 返回 true 后调用
	FetchTracks(ctx context.Context, id model.ItemID) ([]model.Item, error)
	Add(ctx context.Context, id model.ItemID, tracks []model.Item) error
}

// Store 定义权威数据源，返回顺序由存储决定
type Store interface {
	FindSimilarTracks(ctx context.Context, id model.ItemID) ([]model.Item, error)
}

// Service 组合 Cache 与 Store 提供相似条目查询
// Service 自身无可变状态，可被多个 goroutine 共享
type Service struct {
	cache Cache
	store Store
}

// NewService 创建查询服务，cache 与 store 由调用方注入
func NewService(cache Cache, store Store) *Service {
	return &Service{
		cache: cache,
		store: store,
	}
}

// Similar 使用 DefaultMaxAmount 查询
func (s *Service) Similar(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	return s.SimilarTracks(ctx, id, DefaultMaxAmount)
}

// SimilarTracks 返回 id 的前 maxAmount 个相似条目
//
// 命中缓存时直接读取缓存；未命中时查询 Store，并将完整（未截断）结果写入缓存。
// 两条路径使用同样的截断规则。Cache 和 Store 的错误原样返回。
// 并发未命中同一 id 时可能重复查询 Store，需要去重时用 InflightStore 包装 Store。
func (s *Service) SimilarTracks(ctx context.Context, id model.ItemID, maxAmount int) ([]model.Item, error) {
	if maxAmount < 0 {
		return nil, fmt.Errorf("%w: max amount must not be negative, got %d", model.ErrInvalidArgument, maxAmount)
	}

	hit, err := s.cache.Contains(ctx, id)
	if err != nil {
		return nil, err
	}
	if hit {
		tracks, err := s.cache.FetchTracks(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.Truncate(tracks, maxAmount), nil
	}

	tracks, err := s.store.FindSimilarTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Add(ctx, id, tracks); err != nil {
		return nil, err
	}
	return model.Truncate(tracks, maxAmount), nil
}
