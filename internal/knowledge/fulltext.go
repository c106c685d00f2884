package knowledge

import (
	"context"
)

// FulltextIndexer 全文索引接口，向量检索的可选补充
type FulltextIndexer interface {
	IndexChunk(ctx context.Context, chunk Chunk) error
	Reset(ctx context.Context) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Ready() bool
}

// NoopFulltextIndexer 未配置全文检索时的占位实现
type NoopFulltextIndexer struct{}

func (n *NoopFulltextIndexer) IndexChunk(ctx context.Context, chunk Chunk) error {
	return nil
}

func (n *NoopFulltextIndexer) Reset(ctx context.Context) error {
	return nil
}

func (n *NoopFulltextIndexer) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return nil, nil
}

func (n *NoopFulltextIndexer) Ready() bool {
	return false
}
