package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"similarity_engine/internal/logger"
	"similarity_engine/internal/model"
)

// DefaultWarmupConcurrency 预热时同时进行的查询数
const DefaultWarmupConcurrency = 4

// WarmupResult 预热任务的结果
type WarmupResult struct {
	Warmed int               `json:"warmed"`
	Failed map[string]string `json:"failed"`
}

// warmup 并发查询每个 id，未命中的结果会被写入缓存
// 采用 "Best Effort" 策略：只有所有 id 都失败时才返回错误
func (s *Server) warmup(ctx context.Context, ids []string) (WarmupResult, error) {
	result := WarmupResult{Failed: make(map[string]string)}
	var mu sync.Mutex // 保护 result

	g := new(errgroup.Group)
	g.SetLimit(s.warmupConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := s.warmOne(ctx, model.ItemID(id))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[id] = err.Error()
			} else {
				result.Warmed++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("warmup finished: %d warmed, %d failed", result.Warmed, len(result.Failed))

	if result.Warmed == 0 && len(result.Failed) > 0 {
		msgs := make([]string, 0, len(result.Failed))
		for id, msg := range result.Failed {
			msgs = append(msgs, fmt.Sprintf("%s: %s", id, msg))
		}
		sort.Strings(msgs)
		return result, fmt.Errorf("all warmup lookups failed: %s", strings.Join(msgs, "; "))
	}
	return result, nil
}

func (s *Server) warmOne(ctx context.Context, id model.ItemID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lookup panic: %v", r)
		}
	}()

	idCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// maxAmount 为 0 时不返回条目，但未命中仍会写入完整结果
	_, err = s.lookup.SimilarTracks(idCtx, id, 0)
	return err
}
