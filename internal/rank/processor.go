package rank

import (
	"fmt"
	"math"
	"sort"

	"similarity_engine/internal/model"
)

// Processor 按分数从高到低选出前 topAmount 个条目
// 分数相同的条目保持输入中的相对顺序
type Processor struct {
	topAmount int
}

// NewProcessor 创建 Processor，topAmount 为负数时返回 ErrInvalidArgument
func NewProcessor(topAmount int) (*Processor, error) {
	if topAmount < 0 {
		return nil, fmt.Errorf("%w: top amount must not be negative, got %d", model.ErrInvalidArgument, topAmount)
	}
	return &Processor{topAmount: topAmount}, nil
}

// TopAmount 返回配置的数量上限
func (p *Processor) TopAmount() int { return p.topAmount }

// Process 返回 items 中分数最高的 min(topAmount, len(items)) 个条目，降序排列
// 不修改输入切片
func (p *Processor) Process(items []model.Item) []model.Item {
	if p.topAmount == 0 || len(items) == 0 {
		return []model.Item{}
	}

	sorted := model.Clone(items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i].Score) > sortKey(sorted[j].Score)
	})

	// 截断
	if len(sorted) > p.topAmount {
		sorted = sorted[:p.topAmount:p.topAmount]
	}
	return sorted
}

// TopK 是 NewProcessor(k).Process(items) 的简写
func TopK(items []model.Item, k int) ([]model.Item, error) {
	p, err := NewProcessor(k)
	if err != nil {
		return nil, err
	}
	return p.Process(items), nil
}

// NaN 视为最低分，否则比较不满足严格弱序
func sortKey(score float64) float64 {
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}
