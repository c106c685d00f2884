package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aihub/docqa-go/internal/config"
	"github.com/aihub/docqa-go/internal/knowledge"
	"github.com/aihub/docqa-go/internal/logger"
)

const embedCachePrefix = "docqa:emb:"

// CachedEmbedder 带 Redis 缓存的向量化器。缓存不可用时直接透传，
// 降级只记日志不报错。
type CachedEmbedder struct {
	inner  knowledge.Embedder
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewCachedEmbedder 包装一个向量化器，键按模型和文本内容哈希
func NewCachedEmbedder(inner knowledge.Embedder, cfg config.RedisConfig) *CachedEmbedder {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		DB:   cfg.DB,
	})
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		ttl:    time.Duration(cfg.TTL) * time.Second,
		log:    logger.GetLogger(),
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "|" + text))
	return embedCachePrefix + hex.EncodeToString(sum[:])
}

// Embed 先查缓存，未命中走底层向量化并回填
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var embedding []float32
		if err := json.Unmarshal(payload, &embedding); err == nil && len(embedding) > 0 {
			CountEmbedCacheHit()
			return embedding, nil
		}
	} else if err != redis.Nil {
		c.log.Debug("向量缓存读取失败", zap.Error(err))
	}
	CountEmbedCacheMiss()

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(embedding); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Debug("向量缓存写入失败", zap.Error(err))
		}
	}
	return embedding, nil
}

// Model 底层模型名
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Dimensions 底层向量维度
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Ready 取决于底层向量化器，缓存本身不影响可用性
func (c *CachedEmbedder) Ready() bool {
	return c.inner.Ready()
}

// Close 释放 Redis 连接
func (c *CachedEmbedder) Close() error {
	return c.client.Close()
}
