package knowledge

import (
	"context"
	"math"
	"sort"
	"time"
)

// EmbeddedChunk Chunk加上定长向量
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// SearchResult 向量检索结果，Score为余弦相似度，越大越相关
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// StoreMeta 索引元信息，模型与维度在store生命周期内不变
type StoreMeta struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// VectorStore 向量存储抽象。Replace原子替换全部内容；
// Search与Search可并发，Replace与任何读操作互斥。
type VectorStore interface {
	Identity() string
	Replace(ctx context.Context, meta StoreMeta, chunks []EmbeddedChunk) error
	Meta(ctx context.Context) (StoreMeta, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)
	Ready() bool
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32, normA float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot float64
	var normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (normA * math.Sqrt(normB))
}

// sortMatchesByScore 按相似度降序排序，同分按chunk ID稳定排序保证跨运行一致
func sortMatchesByScore(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}
