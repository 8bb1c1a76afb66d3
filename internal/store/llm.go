package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"similarity_engine/internal/logger"
	"similarity_engine/internal/model"
	"similarity_engine/pkg/llm"
)

// DefaultLLMCount 每次向 LLM 请求的相似条目数
const DefaultLLMCount = 20

// LLMStore 通过 LLM 生成相似曲目
type LLMStore struct {
	client llm.Client
	count  int
}

// NewLLMStore 创建一个新的 LLMStore，client 由外部注入
func NewLLMStore(client llm.Client, count int) *LLMStore {
	if count <= 0 {
		count = DefaultLLMCount
	}
	return &LLMStore{
		client: client,
		count:  count,
	}
}

type llmTrack struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func (s *LLMStore) FindSimilarTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	prompt := fmt.Sprintf(`
Recommend %d real, released songs that are similar in style to the track %q.
Never invent titles; every song must be an existing recording.
Output strictly a JSON array of objects, e.g. [{"name": "Song A", "score": 0.93}],
where score is the similarity between 0 and 1, most similar first.
Do not include explanations, Markdown formatting or any extra text.
`, s.count, string(id))

	messages := []llm.Message{
		{Role: "system", Content: "You are a professional music recommendation engine."},
		{Role: "user", Content: prompt},
	}

	// 调用 LLM
	respContent, err := s.client.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("llm chat failed: %w", err)
	}

	var tracks []llmTrack
	if err := json.Unmarshal([]byte(cleanJSON(respContent)), &tracks); err != nil {
		logger.Debug("unparseable llm response for %s: [%s]", id, respContent)
		return nil, fmt.Errorf("failed to parse llm response: %w", err)
	}

	items := make([]model.Item, 0, len(tracks))
	for _, t := range tracks {
		name := cleanSongName(t.Name)
		if name == "" {
			continue
		}
		items = append(items, model.Item{Name: name, Score: t.Score})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: llm returned no tracks for %s", model.ErrNotFound, id)
	}

	logger.Debug("llm store returned %d tracks for %s", len(items), id)
	return items, nil
}

// cleanJSON 尝试从文本中提取并清理 JSON 数组
func cleanJSON(content string) string {
	content = strings.TrimSpace(content)

	// 1. 移除 Markdown 代码块标记
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 2. 如果包含 '[' 和 ']'，尝试提取中间的部分
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start != -1 && end != -1 && end > start {
		content = content[start : end+1]
	}

	return content
}

// cleanSongName 去除歌名中的书名号和多余空白
func cleanSongName(name string) string {
	name = strings.ReplaceAll(name, "《", "")
	name = strings.ReplaceAll(name, "》", "")
	return strings.TrimSpace(name)
}
