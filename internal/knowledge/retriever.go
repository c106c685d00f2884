package knowledge

import (
	"context"
)

// DefaultTopK 默认返回的chunk数量
const DefaultTopK = 4

// Retriever 无状态检索器，Index查询的薄封装，丢弃分数但保持排序
type Retriever struct {
	index *Index
	topK  int
}

// NewRetriever 创建检索器，topK<=0时使用DefaultTopK
func NewRetriever(index *Index, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{index: index, topK: topK}
}

// Retrieve 返回与question最相关的k个chunk，k<=0时使用配置默认值
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = r.topK
	}

	results, err := r.index.Query(ctx, question, k)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, res.Chunk)
	}
	return chunks, nil
}
