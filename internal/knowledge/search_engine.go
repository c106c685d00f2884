package knowledge

import (
	"context"

	"go.uber.org/zap"

	"github.com/aihub/docqa-go/internal/logger"
)

// SearchEngine 组合向量检索与可选的全文检索
type SearchEngine struct {
	index          *Index
	fulltext       FulltextIndexer
	vectorWeight   float64
	fulltextWeight float64
	log            *zap.Logger
}

// NewSearchEngine 创建检索引擎，默认向量0.6/全文0.4
func NewSearchEngine(index *Index, fulltext FulltextIndexer) *SearchEngine {
	if fulltext == nil {
		fulltext = &NoopFulltextIndexer{}
	}
	return &SearchEngine{
		index:          index,
		fulltext:       fulltext,
		vectorWeight:   0.6,
		fulltextWeight: 0.4,
		log:            logger.GetLogger(),
	}
}

// SetWeights 设置混合检索权重并归一化
func (e *SearchEngine) SetWeights(vectorWeight, fulltextWeight float64) {
	if vectorWeight > 0 && fulltextWeight > 0 {
		total := vectorWeight + fulltextWeight
		e.vectorWeight = vectorWeight / total
		e.fulltextWeight = fulltextWeight / total
	}
}

// Fulltext 返回全文索引器，供ingest侧写入
func (e *SearchEngine) Fulltext() FulltextIndexer {
	return e.fulltext
}

// Search 混合检索。全文索引不可用时退化为纯向量检索；
// 全文检索失败只降级不报错。
func (e *SearchEngine) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	vectorResults, err := e.index.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if !e.fulltext.Ready() {
		return vectorResults, nil
	}

	fulltextResults, err := e.fulltext.Search(ctx, query, limit)
	if err != nil {
		e.log.Warn("全文检索失败，退化为纯向量检索", zap.Error(err))
		return vectorResults, nil
	}
	if len(fulltextResults) == 0 {
		return vectorResults, nil
	}

	return e.merge(vectorResults, fulltextResults, limit), nil
}

// merge 按chunk ID合并两路结果，BM25分数归一化后加权
func (e *SearchEngine) merge(vector, fulltext []SearchResult, limit int) []SearchResult {
	var maxBM25 float64
	for _, m := range fulltext {
		if m.Score > maxBM25 {
			maxBM25 = m.Score
		}
	}

	combined := make(map[string]SearchResult, len(vector)+len(fulltext))
	for _, m := range vector {
		m.Score = m.Score * e.vectorWeight
		combined[m.Chunk.ID] = m
	}
	for _, m := range fulltext {
		norm := 0.0
		if maxBM25 > 0 {
			norm = m.Score / maxBM25
		}
		weighted := norm * e.fulltextWeight
		if existing, ok := combined[m.Chunk.ID]; ok {
			existing.Score += weighted
			combined[m.Chunk.ID] = existing
		} else {
			m.Score = weighted
			combined[m.Chunk.ID] = m
		}
	}

	results := make([]SearchResult, 0, len(combined))
	for _, m := range combined {
		results = append(results, m)
	}
	sortMatchesByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
