package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchIndexer 基于ES的全文索引
type ElasticsearchIndexer struct {
	client    *elasticsearch.Client
	indexName string
	mu        sync.Mutex
	ensured   bool
}

// NewElasticsearchIndexer 创建ES索引器，未配置地址时返回占位实现
func NewElasticsearchIndexer(addresses []string, username, password, apiKey, indexName string) (FulltextIndexer, error) {
	if len(addresses) == 0 {
		return &NoopFulltextIndexer{}, nil
	}

	cfg := elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
		APIKey:    apiKey,
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if indexName == "" {
		indexName = "docqa_chunks"
	}

	return &ElasticsearchIndexer{
		client:    client,
		indexName: indexName,
	}, nil
}

func (e *ElasticsearchIndexer) ensureIndex(ctx context.Context) error {
	e.mu.Lock()
	if e.ensured {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	req := esapi.IndicesExistsRequest{
		Index: []string{e.indexName},
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		e.mu.Lock()
		e.ensured = true
		e.mu.Unlock()
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"chunk_id":    map[string]interface{}{"type": "keyword"},
				"chunk_index": map[string]interface{}{"type": "integer"},
				"source":      map[string]interface{}{"type": "keyword"},
				"content": map[string]interface{}{
					"type":          "text",
					"index_options": "offsets",
				},
			},
		},
	}

	body, _ := json.Marshal(mapping)
	createReq := esapi.IndicesCreateRequest{
		Index: e.indexName,
		Body:  bytes.NewReader(body),
	}
	createResp, err := createReq.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer createResp.Body.Close()

	if createResp.IsError() {
		return fmt.Errorf("create index error: %s", createResp.String())
	}

	e.mu.Lock()
	e.ensured = true
	e.mu.Unlock()
	return nil
}

func (e *ElasticsearchIndexer) IndexChunk(ctx context.Context, chunk Chunk) error {
	if e.client == nil {
		return nil
	}
	if err := e.ensureIndex(ctx); err != nil {
		return err
	}

	doc := map[string]interface{}{
		"chunk_id":    chunk.ID,
		"chunk_index": chunk.Index,
		"source":      metadataSource(chunk.Metadata),
		"content":     chunk.Text,
	}

	payload, _ := json.Marshal(doc)
	req := esapi.IndexRequest{
		Index:      e.indexName,
		DocumentID: chunk.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "true",
	}

	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("index chunk error: %s", resp.String())
	}

	return nil
}

// Reset 删除整个索引，配合force重建
func (e *ElasticsearchIndexer) Reset(ctx context.Context) error {
	if e.client == nil {
		return nil
	}

	req := esapi.IndicesDeleteRequest{
		Index:             []string{e.indexName},
		IgnoreUnavailable: esapi.BoolPtr(true),
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("delete index error: %s", resp.String())
	}

	e.mu.Lock()
	e.ensured = false
	e.mu.Unlock()
	return nil
}

func (e *ElasticsearchIndexer) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if e.client == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if err := e.ensureIndex(ctx); err != nil {
		return nil, err
	}

	// 短语匹配优先，关键词匹配兜底
	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"match_phrase": map[string]interface{}{
							"content": map[string]interface{}{
								"query": query,
								"boost": 3.0,
							},
						},
					},
					map[string]interface{}{
						"match": map[string]interface{}{
							"content": map[string]interface{}{
								"query":                query,
								"minimum_should_match": "70%",
								"boost":                1.0,
							},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
	}

	payload, _ := json.Marshal(body)
	searchReq := esapi.SearchRequest{
		Index: []string{e.indexName},
		Body:  bytes.NewReader(payload),
	}

	resp, err := searchReq.Do(ctx, e.client)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("search error: %s", resp.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	rawHits, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, nil
	}

	matches := make([]SearchResult, 0, len(rawHits))
	for _, raw := range rawHits {
		hit, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		score, _ := hit["_score"].(float64)
		doc, ok := hit["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		chunk := Chunk{}
		if id, ok := doc["chunk_id"].(string); ok {
			chunk.ID = id
		}
		if content, ok := doc["content"].(string); ok {
			chunk.Text = content
		}
		if idx, ok := doc["chunk_index"].(float64); ok {
			chunk.Index = int(idx)
		}
		if source, ok := doc["source"].(string); ok && source != "" {
			chunk.Metadata = map[string]interface{}{"source": source}
		}

		matches = append(matches, SearchResult{Chunk: chunk, Score: score})
	}

	return matches, nil
}

func (e *ElasticsearchIndexer) Ready() bool {
	return e.client != nil
}
