package model

// ItemID 是查询相似条目时使用的不透明键（如曲目 ID）
type ItemID string

// Item 代表一个带分数的条目（如一首歌）
// 两个 Item 当且仅当 Name 与 Score 都相同时相等
type Item struct {
	Name  string  `json:"name" yaml:"name"`
	Score float64 `json:"score" yaml:"score"` // 排序分数，如热度
}

// Clone 返回 items 的独立副本，nil 输入返回空切片
func Clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Truncate 返回 items 前 n 个元素的独立副本
func Truncate(items []Item, n int) []Item {
	if n > len(items) {
		n = len(items)
	}
	if n < 0 {
		n = 0
	}
	return Clone(items[:n])
}
