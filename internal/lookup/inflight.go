package lookup

import (
	"context"

	"golang.org/x/sync/singleflight"

	"similarity_engine/internal/model"
)

// InflightStore 对同一 id 的并发查询只调用一次下游 Store
type InflightStore struct {
	next  Store
	group singleflight.Group
}

// NewInflightStore 包装 next，使同一 id 的并发查询共享一次结果
func NewInflightStore(next Store) *InflightStore {
	return &InflightStore{next: next}
}

// FindSimilarTracks implements Store.
// 共享查询不受单个调用方取消的影响；调用方的 ctx 结束时立即返回 ctx.Err()
func (s *InflightStore) FindSimilarTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	ch := s.group.DoChan(string(id), func() (interface{}, error) {
		return s.next.FindSimilarTracks(context.WithoutCancel(ctx), id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		tracks, _ := res.Val.([]model.Item)
		// 每个调用方拿到独立副本
		return model.Clone(tracks), nil
	}
}

// Forget 丢弃 id 的进行中查询，下一次调用会重新请求下游
func (s *InflightStore) Forget(id model.ItemID) {
	s.group.Forget(string(id))
}
