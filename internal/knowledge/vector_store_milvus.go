package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	apperrors "github.com/aihub/docqa-go/internal/errors"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Collection string
	VectorSize int
	Distance   string
	Database   string
	UseTLS     bool
	Timeout    time.Duration
	Model      string
}

type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorSize   int
	distance     string
	database     string
	model        string
}

// NewMilvusVectorStore 创建Milvus向量存储，collection名即store身份
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "docqa_vectors"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Distance == "" {
		opts.Distance = "COSINE"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(
		ctx,
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorSize:   opts.VectorSize,
		distance:     formatMilvusDistance(opts.Distance),
		database:     opts.Database,
		model:        opts.Model,
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "L2", "EUCLIDEAN":
		return "L2"
	default:
		return "COSINE"
	}
}

func (s *milvusVectorStore) Identity() string {
	return fmt.Sprintf("milvus://%s/%s", s.database, s.collection)
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    fmt.Sprintf("docqa chunks embedded with %s", s.model),
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorSize),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	var index entity.Index
	var indexErr error
	index, indexErr = entity.NewIndexHNSW(entity.MetricType(s.distance), 8, 64)
	if indexErr != nil {
		index, indexErr = entity.NewIndexIvfFlat(entity.MetricType(s.distance), 128)
		if indexErr != nil {
			return fmt.Errorf("failed to create index: %w", indexErr)
		}
	}
	if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	return nil
}

// Replace 删除并重建collection后批量写入，实现全量原子替换语义
func (s *milvusVectorStore) Replace(ctx context.Context, meta StoreMeta, chunks []EmbeddedChunk) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		if err := s.milvusClient.DropCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	s.vectorSize = meta.Dimension
	s.model = meta.Model
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, 0, len(chunks))
	indexes := make([]int64, 0, len(chunks))
	sources := make([]string, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != meta.Dimension {
			return apperrors.NewDimensionMismatch(meta.Dimension, len(c.Embedding))
		}
		ids = append(ids, c.ID)
		indexes = append(indexes, int64(c.Index))
		sources = append(sources, metadataSource(c.Metadata))
		contents = append(contents, c.Text)
		vectors = append(vectors, c.Embedding)
	}

	_, err = s.milvusClient.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("vector", s.vectorSize, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus insert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		return fmt.Errorf("milvus flush failed: %w", err)
	}
	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("milvus load failed: %w", err)
	}

	return nil
}

func (s *milvusVectorStore) Meta(ctx context.Context) (StoreMeta, error) {
	return StoreMeta{
		Model:     s.model,
		Dimension: s.vectorSize,
	}, nil
}

func (s *milvusVectorStore) Count(ctx context.Context) (int, error) {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}
	if !hasCollection {
		return 0, nil
	}

	stats, err := s.milvusClient.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to read collection statistics: %w", err)
	}
	count, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, nil
	}
	return count, nil
}

func (s *milvusVectorStore) Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.NewEmptyIndex(s.Identity())
	}
	if len(embedding) != s.vectorSize {
		return nil, apperrors.NewDimensionMismatch(s.vectorSize, len(embedding))
	}
	if k <= 0 {
		k = 10
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	queryVector := entity.FloatVector(embedding)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		[]string{"chunk_index", "source", "content"},
		[]entity.Vector{queryVector},
		"vector",
		entity.MetricType(s.distance),
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []SearchResult{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []SearchResult{}, nil
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var indexes []int64
	var sources []string
	var contents []string
	for _, field := range result.Fields {
		switch field.Name() {
		case "chunk_index":
			if val, ok := field.(*entity.ColumnInt64); ok {
				indexes = val.Data()
			}
		case "source":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				sources = val.Data()
			}
		case "content":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				contents = val.Data()
			}
		}
	}

	results := make([]SearchResult, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		chunk := Chunk{}
		if i < len(ids) {
			chunk.ID = ids[i]
		}
		if i < len(indexes) {
			chunk.Index = int(indexes[i])
		}
		if i < len(sources) && sources[i] != "" {
			chunk.Metadata = map[string]interface{}{"source": sources[i]}
		}
		if i < len(contents) {
			chunk.Text = contents[i]
		}

		score := float64(0)
		if i < len(result.Scores) {
			score = float64(result.Scores[i])
		}

		results = append(results, SearchResult{Chunk: chunk, Score: score})
	}

	return results, nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

func metadataSource(metadata map[string]interface{}) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata["source"].(string); ok {
		return v
	}
	return ""
}
