package knowledge

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubFulltext 可编程的全文索引桩
type stubFulltext struct {
	ready   bool
	results []SearchResult
	err     error
	indexed []Chunk
}

func (f *stubFulltext) IndexChunk(ctx context.Context, chunk Chunk) error {
	f.indexed = append(f.indexed, chunk)
	return nil
}

func (f *stubFulltext) Reset(ctx context.Context) error {
	f.indexed = nil
	return nil
}

func (f *stubFulltext) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return f.results, f.err
}

func (f *stubFulltext) Ready() bool {
	return f.ready
}

func newBuiltEngine(t *testing.T, fulltext FulltextIndexer) *SearchEngine {
	t.Helper()
	store := NewLocalVectorStore(filepath.Join(t.TempDir(), "index.json"))
	index := NewIndex(store, &stubEmbedder{}, 4)
	err := index.Build(context.Background(), knowledgeBase(), true)
	assert.NoError(t, err)
	return NewSearchEngine(index, fulltext)
}

func TestSearchEnginePureVectorWhenFulltextUnavailable(t *testing.T) {
	engine := newBuiltEngine(t, &NoopFulltextIndexer{})

	results, err := engine.Search(context.Background(), "notice period", 2)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Contains(t, results[0].Chunk.Text, "notice period")
}

func TestSearchEngineDegradesOnFulltextError(t *testing.T) {
	fulltext := &stubFulltext{ready: true, err: errors.New("es down")}
	engine := newBuiltEngine(t, fulltext)

	results, err := engine.Search(context.Background(), "notice period", 2)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchEngineMergeBoostsAgreement(t *testing.T) {
	chunks := knowledgeBase()
	// 全文检索也命中dismissal那条，合并后它应该领先
	fulltext := &stubFulltext{
		ready: true,
		results: []SearchResult{
			{Chunk: chunks[1], Score: 12.5},
		},
	}
	engine := newBuiltEngine(t, fulltext)

	results, err := engine.Search(context.Background(), "dismissal service", 4)
	assert.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, chunks[1].ID, results[0].Chunk.ID)
}

func TestSearchEngineMergeRespectsLimit(t *testing.T) {
	chunks := knowledgeBase()
	fulltext := &stubFulltext{
		ready: true,
		results: []SearchResult{
			{Chunk: chunks[0], Score: 3.0},
			{Chunk: chunks[2], Score: 1.5},
		},
	}
	engine := newBuiltEngine(t, fulltext)

	results, err := engine.Search(context.Background(), "leave entitlement", 2)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchEngineWeightNormalization(t *testing.T) {
	engine := newBuiltEngine(t, &NoopFulltextIndexer{})

	engine.SetWeights(3, 1)
	assert.InDelta(t, 0.75, engine.vectorWeight, 1e-9)
	assert.InDelta(t, 0.25, engine.fulltextWeight, 1e-9)

	// 非法权重不改变现状
	engine.SetWeights(0, -1)
	assert.InDelta(t, 0.75, engine.vectorWeight, 1e-9)
}
