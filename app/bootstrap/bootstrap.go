package bootstrap

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aihub/docqa-go/internal/config"
	"github.com/aihub/docqa-go/internal/di"
	"github.com/aihub/docqa-go/internal/knowledge"
	"github.com/aihub/docqa-go/internal/llm"
	"github.com/aihub/docqa-go/internal/logger"
	"github.com/aihub/docqa-go/internal/services"
)

// App 应用实例，持有清理任务
type App struct {
	cleanupTasks []func()
}

// Init 初始化应用：环境变量、日志、配置、依赖注入容器
func Init() (*App, error) {
	// .env 不存在不算错误，生产环境直接用真实环境变量
	_ = godotenv.Load()

	logger.InitLogger()

	if err := config.LoadConfig(); err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	app := &App{}
	app.cleanupTasks = append(app.cleanupTasks, func() {
		logger.Sync()
	})

	di.InitContainer()
	if err := registerDependencies(app); err != nil {
		return nil, fmt.Errorf("注册依赖失败: %w", err)
	}

	logger.Info("应用初始化完成",
		zap.String("env", config.AppConfig.Server.Env),
		zap.String("vector_store", config.AppConfig.Knowledge.VectorStore.Provider))
	return app, nil
}

// Shutdown 按注册顺序倒序执行清理任务
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		a.cleanupTasks[i]()
	}
}

func registerDependencies(app *App) error {
	cfg := config.AppConfig

	di.MustProvide(func() *config.Config {
		return cfg
	})

	// 向量化器，Redis可用时套一层缓存
	di.MustProvide(func(cfg *config.Config) knowledge.Embedder {
		emb := knowledge.NewOpenAIEmbedder(
			cfg.Knowledge.Embedding.APIKey,
			cfg.Knowledge.Embedding.BaseURL,
			cfg.Knowledge.Embedding.Model,
		)
		if cfg.Redis.Enabled {
			cached := services.NewCachedEmbedder(emb, cfg.Redis)
			app.cleanupTasks = append(app.cleanupTasks, func() {
				if err := cached.Close(); err != nil {
					logger.Warn("关闭向量缓存失败", zap.Error(err))
				}
			})
			return cached
		}
		return emb
	})

	// 向量存储，按配置选择本地文件或Milvus
	di.MustProvide(func(cfg *config.Config, embedder knowledge.Embedder) (knowledge.VectorStore, error) {
		vs := cfg.Knowledge.VectorStore
		switch vs.Provider {
		case "milvus":
			return knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
				Address:    vs.Milvus.Address,
				Username:   vs.Milvus.Username,
				Password:   vs.Milvus.Password,
				Collection: vs.Milvus.Collection,
				Database:   vs.Milvus.Database,
				UseTLS:     vs.Milvus.TLS,
				Distance:   vs.Milvus.Distance,
				VectorSize: embedder.Dimensions(),
				Model:      embedder.Model(),
			})
		default:
			return knowledge.NewLocalVectorStore(vs.Path), nil
		}
	})

	di.MustProvide(func(cfg *config.Config, store knowledge.VectorStore, embedder knowledge.Embedder) *knowledge.Index {
		return knowledge.NewIndex(store, embedder, cfg.Knowledge.MaxParallel)
	})

	di.MustProvide(func(cfg *config.Config, index *knowledge.Index) *knowledge.Retriever {
		return knowledge.NewRetriever(index, cfg.Knowledge.TopK)
	})

	// 全文索引，ES未启用时退化为空实现
	di.MustProvide(func(cfg *config.Config) knowledge.FulltextIndexer {
		es := cfg.Knowledge.Search.Elasticsearch
		if !es.Enabled {
			return &knowledge.NoopFulltextIndexer{}
		}
		indexer, err := knowledge.NewElasticsearchIndexer(
			es.Addresses, es.Username, es.Password, es.APIKey,
			es.IndexPrefix+"chunks",
		)
		if err != nil {
			logger.Warn("Elasticsearch初始化失败，退化为纯向量检索", zap.Error(err))
			return &knowledge.NoopFulltextIndexer{}
		}
		return indexer
	})

	di.MustProvide(func(index *knowledge.Index, fulltext knowledge.FulltextIndexer) *knowledge.SearchEngine {
		return knowledge.NewSearchEngine(index, fulltext)
	})

	di.MustProvide(func(cfg *config.Config) llm.Provider {
		return llm.NewOpenAIProvider(llm.ProviderOptions{
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		})
	})

	di.MustProvide(func(cfg *config.Config, retriever *knowledge.Retriever, provider llm.Provider) *services.ChatService {
		return services.NewChatService(retriever, provider, services.ChatOptions{
			TopK:        cfg.Knowledge.TopK,
			HistorySize: cfg.AI.HistorySize,
			Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		})
	})

	return nil
}
