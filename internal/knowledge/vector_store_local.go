package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/aihub/docqa-go/internal/errors"
)

// localStoreFile 持久化文件格式
type localStoreFile struct {
	Model     string             `json:"model"`
	Dimension int                `json:"dimension"`
	CreatedAt time.Time          `json:"created_at"`
	Chunks    []localStoredChunk `json:"chunks"`
}

type localStoredChunk struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Index     int                    `json:"index"`
	Offset    int                    `json:"offset"`
	Embedding []float32              `json:"embedding"`
}

// LocalVectorStore 基于单文件的本地向量存储。
// 文件路径即store身份；重建通过临时文件+rename原子替换；
// 同身份的重建持写锁，查询持读锁。
type LocalVectorStore struct {
	path string

	mu     sync.RWMutex
	loaded bool
	meta   StoreMeta
	chunks []EmbeddedChunk
}

// NewLocalVectorStore 创建本地向量存储，文件不存在时视为空索引
func NewLocalVectorStore(path string) *LocalVectorStore {
	return &LocalVectorStore{path: path}
}

func (s *LocalVectorStore) Identity() string {
	return s.path
}

func (s *LocalVectorStore) Ready() bool {
	return s.path != ""
}

// Replace 原子替换全部chunk，先写临时文件再rename
func (s *LocalVectorStore) Replace(ctx context.Context, meta StoreMeta, chunks []EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, c := range chunks {
		if len(c.Embedding) != meta.Dimension {
			return apperrors.NewDimensionMismatch(meta.Dimension, len(c.Embedding))
		}
	}

	file := localStoreFile{
		Model:     meta.Model,
		Dimension: meta.Dimension,
		CreatedAt: meta.CreatedAt,
		Chunks:    make([]localStoredChunk, 0, len(chunks)),
	}
	for _, c := range chunks {
		file.Chunks = append(file.Chunks, localStoredChunk{
			ID:        c.ID,
			Text:      c.Text,
			Metadata:  c.Metadata,
			Index:     c.Index,
			Offset:    c.Offset,
			Embedding: c.Embedding,
		})
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("序列化索引失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("创建索引目录失败: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入索引临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("替换索引文件失败: %w", err)
	}

	s.meta = meta
	s.chunks = chunks
	s.loaded = true
	return nil
}

// load 惰性加载持久化文件到内存，重开同一路径不触发重新嵌入
func (s *LocalVectorStore) load() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("读取索引文件失败: %w", err)
	}

	var file localStoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("解析索引文件失败: %w", err)
	}

	s.meta = StoreMeta{
		Model:     file.Model,
		Dimension: file.Dimension,
		CreatedAt: file.CreatedAt,
	}
	s.chunks = make([]EmbeddedChunk, 0, len(file.Chunks))
	for _, c := range file.Chunks {
		s.chunks = append(s.chunks, EmbeddedChunk{
			Chunk: Chunk{
				ID:       c.ID,
				Text:     c.Text,
				Metadata: c.Metadata,
				Index:    c.Index,
				Offset:   c.Offset,
			},
			Embedding: c.Embedding,
		})
	}
	s.loaded = true
	return nil
}

func (s *LocalVectorStore) Meta(ctx context.Context) (StoreMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return StoreMeta{}, err
	}
	return s.meta, nil
}

func (s *LocalVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return 0, err
	}
	return len(s.chunks), nil
}

// Search 全量余弦相似度检索，返回top k。k大于索引规模时返回全部。
func (s *LocalVectorStore) Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	s.mu.Lock()
	if err := s.load(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return nil, apperrors.NewEmptyIndex(s.path)
	}
	if len(embedding) != s.meta.Dimension {
		return nil, apperrors.NewDimensionMismatch(s.meta.Dimension, len(embedding))
	}
	if k <= 0 {
		k = 10
	}

	queryNorm := vectorNorm(embedding)
	if queryNorm == 0 {
		return nil, fmt.Errorf("query embedding norm is zero")
	}

	results := make([]SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := cosineSimilarity(embedding, c.Embedding, queryNorm)
		results = append(results, SearchResult{Chunk: c.Chunk, Score: score})
	}

	sortMatchesByScore(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
