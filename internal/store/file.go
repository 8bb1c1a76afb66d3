package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"similarity_engine/internal/logger"
	"similarity_engine/internal/model"
)

// Record 代表相似表中的一行：TrackID 的一个相似条目
type Record struct {
	TrackID model.ItemID `json:"track_id"`
	Name    string       `json:"name"`
	Score   float64      `json:"score"`
}

// FileStore 基于 JSON Lines 文件的相似表
// 同一 TrackID 的记录按文件中的顺序组成结果
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	similar  map[model.ItemID][]model.Item // 内存索引，用于快速查询
}

// NewFileStore 创建一个新的 FileStore
// 如果文件不存在，会自动创建
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{
		filePath: filePath,
		similar:  make(map[model.ItemID][]model.Item),
	}

	if err := fs.load(); err != nil {
		return nil, err
	}

	return fs, nil
}

// load 从文件加载所有记录到内存
func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open similarity file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	skipped := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil || record.TrackID == "" {
			// 忽略损坏的行
			skipped++
			logger.Debug("skip corrupt line %d in %s", lineNo, s.filePath)
			continue
		}
		s.similar[record.TrackID] = append(s.similar[record.TrackID], model.Item{
			Name:  record.Name,
			Score: record.Score,
		})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan similarity file: %w", err)
	}
	if skipped > 0 {
		logger.Warn("skipped %d corrupt lines in %s", skipped, s.filePath)
	}

	return nil
}

// FindSimilarTracks 返回 id 的全部相似条目，未知 id 返回 model.ErrNotFound
func (s *FileStore) FindSimilarTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.similar[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return model.Clone(items), nil
}

// Save 追加 id 的相似条目到文件和内存
// 全部记录编码成功后一次写入，写入成功才更新内存
func (s *FileStore) Save(id model.ItemID, items []model.Item) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, item := range items {
		record := Record{
			TrackID: id,
			Name:    item.Name,
			Score:   item.Score,
		}
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to encode similarity record: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open similarity file for appending: %w", err)
	}
	defer f.Close()

	// 1. 写入文件
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write similarity records: %w", err)
	}

	// 2. 更新内存
	s.similar[id] = append(s.similar[id], items...)
	return nil
}

// IDs 返回已知的全部 id，顺序不固定
func (s *FileStore) IDs() []model.ItemID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]model.ItemID, 0, len(s.similar))
	for id := range s.similar {
		ids = append(ids, id)
	}
	return ids
}
