package knowledge

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aihub/docqa-go/internal/errors"
	"github.com/aihub/docqa-go/internal/logger"
)

// 同一store身份的重建必须与读操作互斥
var (
	identityLocksMu sync.Mutex
	identityLocks   = map[string]*sync.RWMutex{}
)

func lockFor(identity string) *sync.RWMutex {
	identityLocksMu.Lock()
	defer identityLocksMu.Unlock()
	if l, ok := identityLocks[identity]; ok {
		return l
	}
	l := &sync.RWMutex{}
	identityLocks[identity] = l
	return l
}

// Index 组合嵌入模型与向量存储，负责构建与查询
type Index struct {
	store       VectorStore
	embedder    Embedder
	maxParallel int
	log         *zap.Logger
}

// NewIndex 创建索引，maxParallel控制构建期并行嵌入数
func NewIndex(store VectorStore, embedder Embedder, maxParallel int) *Index {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Index{
		store:       store,
		embedder:    embedder,
		maxParallel: maxParallel,
		log:         logger.GetLogger(),
	}
}

// Identity 返回底层store身份
func (ix *Index) Identity() string {
	return ix.store.Identity()
}

// Build 构建索引。force为true或现有索引为空时全量嵌入并原子替换；
// 否则直接复用已持久化的索引，不做增量diff。
// 嵌入并行执行，顺序不影响最终内容。
func (ix *Index) Build(ctx context.Context, chunks []Chunk, force bool) error {
	lock := lockFor(ix.store.Identity())
	lock.Lock()
	defer lock.Unlock()

	if !force {
		count, err := ix.store.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			ix.log.Info("索引已存在，跳过重建",
				zap.String("store", ix.store.Identity()),
				zap.Int("chunks", count))
			return nil
		}
	}

	if !ix.embedder.Ready() {
		return apperrors.NewEmbeddingUnavailable(nil)
	}

	// 空文本chunk属于局部可恢复错误，跳过不中断构建
	valid := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			ix.log.Warn("跳过空白chunk", zap.String("id", c.ID), zap.Int("index", c.Index))
			continue
		}
		valid = append(valid, c)
	}

	embedded := make([]EmbeddedChunk, len(valid))
	sem := make(chan struct{}, ix.maxParallel)
	var wg sync.WaitGroup
	var errOnce sync.Once
	var embedErr error

	for i, c := range valid {
		wg.Add(1)
		go func(i int, c Chunk) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := ix.embedder.Embed(ctx, c.Text)
			if err != nil {
				errOnce.Do(func() { embedErr = err })
				return
			}
			embedded[i] = EmbeddedChunk{Chunk: c, Embedding: vec}
		}(i, c)
	}
	wg.Wait()

	if embedErr != nil {
		return apperrors.NewEmbeddingUnavailable(embedErr)
	}

	meta := StoreMeta{
		Model:     ix.embedder.Model(),
		Dimension: ix.embedder.Dimensions(),
		CreatedAt: time.Now().UTC(),
	}
	if err := ix.store.Replace(ctx, meta, embedded); err != nil {
		return err
	}

	ix.log.Info("索引构建完成",
		zap.String("store", ix.store.Identity()),
		zap.String("model", meta.Model),
		zap.Int("chunks", len(embedded)))
	return nil
}

// Count 返回索引中的chunk数量
func (ix *Index) Count(ctx context.Context) (int, error) {
	lock := lockFor(ix.store.Identity())
	lock.RLock()
	defer lock.RUnlock()
	return ix.store.Count(ctx)
}

// Query 嵌入查询文本后做相似度检索，返回按相关度降序的top k。
// 索引为空返回EMPTY_INDEX；维度不一致返回DIMENSION_MISMATCH。
func (ix *Index) Query(ctx context.Context, text string, k int) ([]SearchResult, error) {
	lock := lockFor(ix.store.Identity())
	lock.RLock()
	defer lock.RUnlock()

	count, err := ix.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.NewEmptyIndex(ix.store.Identity())
	}

	embedding, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, apperrors.NewEmbeddingUnavailable(err)
	}

	meta, err := ix.store.Meta(ctx)
	if err != nil {
		return nil, err
	}
	if meta.Dimension != 0 && len(embedding) != meta.Dimension {
		return nil, apperrors.NewDimensionMismatch(meta.Dimension, len(embedding))
	}

	return ix.store.Search(ctx, embedding, k)
}
