package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docqa_queries_total",
		Help: "成功回答的问题总数",
	})

	generationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docqa_generation_failures_total",
		Help: "按错误码统计的生成失败次数",
	}, []string{"code"})

	embedCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docqa_embed_cache_hits_total",
		Help: "向量缓存命中次数",
	})

	embedCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docqa_embed_cache_misses_total",
		Help: "向量缓存未命中次数",
	})

	retrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docqa_retrieval_duration_seconds",
		Help:    "检索阶段耗时分布",
		Buckets: prometheus.DefBuckets,
	})
)

// CountQuery 记录一次成功问答
func CountQuery() {
	queriesTotal.Inc()
}

// CountGenerationFailure 按错误码记录生成失败
func CountGenerationFailure(code string) {
	generationFailures.WithLabelValues(code).Inc()
}

// CountEmbedCacheHit 记录缓存命中
func CountEmbedCacheHit() {
	embedCacheHits.Inc()
}

// CountEmbedCacheMiss 记录缓存未命中
func CountEmbedCacheMiss() {
	embedCacheMisses.Inc()
}

// ObserveRetrieval 记录检索耗时
func ObserveRetrieval(d time.Duration) {
	retrievalDuration.Observe(d.Seconds())
}
