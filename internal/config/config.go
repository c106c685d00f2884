package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Knowledge KnowledgeConfig
	AI        AIConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Env string
}

type KnowledgeConfig struct {
	ChunkSize    int `validate:"gt=0"`
	ChunkOverlap int `validate:"gte=0,ltfield=ChunkSize"`
	MaxParallel  int `validate:"gt=0"`
	TopK         int `validate:"gt=0"`
	DocumentsDir string
	Search       SearchConfig
	VectorStore  VectorStoreConfig
	Embedding    EmbeddingConfig
}

type SearchConfig struct {
	Elasticsearch ElasticsearchConfig
}

type ElasticsearchConfig struct {
	Enabled     bool
	Addresses   []string
	Username    string
	Password    string
	APIKey      string
	IndexPrefix string
}

type VectorStoreConfig struct {
	Provider string `validate:"oneof=local milvus"`
	Path     string
	Milvus   MilvusConfig
}

type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	TLS        bool
	Distance   string
}

type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string `validate:"required"`
}

type AIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string `validate:"required"`
	MaxTokens      int    `validate:"gt=0"`
	Temperature    float64
	TimeoutSeconds int `validate:"gte=0"`
	HistorySize    int `validate:"gt=0"`
}

type RedisConfig struct {
	Enabled bool
	Host    string
	Port    string
	DB      int
	TTL     int
}

var AppConfig *Config

func LoadConfig() error {
	// 设置默认值
	viper.SetDefault("server.env", "development")

	// 知识库配置默认值
	viper.SetDefault("knowledge.chunk_size", 1000)
	viper.SetDefault("knowledge.chunk_overlap", 200)
	viper.SetDefault("knowledge.max_parallel", 4)
	viper.SetDefault("knowledge.top_k", 4)
	viper.SetDefault("knowledge.documents_dir", "./data")
	viper.SetDefault("knowledge.search.elasticsearch.enabled", false)
	viper.SetDefault("knowledge.search.elasticsearch.addresses", []string{"http://localhost:9200"})
	viper.SetDefault("knowledge.search.elasticsearch.index_prefix", "docqa_chunks")
	viper.SetDefault("knowledge.vector_store.provider", "local")
	viper.SetDefault("knowledge.vector_store.path", "./chroma_db/index.json")
	viper.SetDefault("knowledge.vector_store.milvus.address", "localhost:19530")
	viper.SetDefault("knowledge.vector_store.milvus.collection", "docqa_vectors")
	viper.SetDefault("knowledge.vector_store.milvus.database", "default")
	viper.SetDefault("knowledge.vector_store.milvus.tls", false)
	viper.SetDefault("knowledge.vector_store.milvus.distance", "cosine")
	viper.SetDefault("knowledge.embedding.model", "text-embedding-3-small")
	viper.SetDefault("knowledge.embedding.base_url", "")

	// AI配置默认值
	viper.SetDefault("ai.model", "meta-llama/Meta-Llama-3-8B-Instruct")
	viper.SetDefault("ai.base_url", "")
	viper.SetDefault("ai.max_tokens", 512)
	viper.SetDefault("ai.temperature", 0.1)
	viper.SetDefault("ai.timeout_seconds", 120)
	viper.SetDefault("ai.history_size", 5)

	// Redis嵌入缓存默认值
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", 86400)

	// 读取环境变量
	viper.SetEnvPrefix("DOCQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 凭证只从环境读取，不进配置文件
	if apiKey := os.Getenv("HUGGINGFACE_API_KEY"); apiKey != "" {
		viper.Set("ai.api_key", apiKey)
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("knowledge.embedding.api_key", apiKey)
		if viper.GetString("ai.api_key") == "" {
			viper.Set("ai.api_key", apiKey)
		}
	}
	if baseURL := os.Getenv("DOCQA_AI_BASE_URL"); baseURL != "" {
		viper.Set("ai.base_url", baseURL)
	}
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		viper.Set("redis.host", redisHost)
		viper.Set("redis.enabled", true)
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		viper.Set("redis.port", redisPort)
	}

	cfg := &Config{
		Server: ServerConfig{
			Env: viper.GetString("server.env"),
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:    viper.GetInt("knowledge.chunk_size"),
			ChunkOverlap: viper.GetInt("knowledge.chunk_overlap"),
			MaxParallel:  viper.GetInt("knowledge.max_parallel"),
			TopK:         viper.GetInt("knowledge.top_k"),
			DocumentsDir: viper.GetString("knowledge.documents_dir"),
			Search: SearchConfig{
				Elasticsearch: ElasticsearchConfig{
					Enabled:     viper.GetBool("knowledge.search.elasticsearch.enabled"),
					Addresses:   viper.GetStringSlice("knowledge.search.elasticsearch.addresses"),
					Username:    viper.GetString("knowledge.search.elasticsearch.username"),
					Password:    viper.GetString("knowledge.search.elasticsearch.password"),
					APIKey:      viper.GetString("knowledge.search.elasticsearch.api_key"),
					IndexPrefix: viper.GetString("knowledge.search.elasticsearch.index_prefix"),
				},
			},
			VectorStore: VectorStoreConfig{
				Provider: viper.GetString("knowledge.vector_store.provider"),
				Path:     viper.GetString("knowledge.vector_store.path"),
				Milvus: MilvusConfig{
					Address:    viper.GetString("knowledge.vector_store.milvus.address"),
					Username:   viper.GetString("knowledge.vector_store.milvus.username"),
					Password:   viper.GetString("knowledge.vector_store.milvus.password"),
					Collection: viper.GetString("knowledge.vector_store.milvus.collection"),
					Database:   viper.GetString("knowledge.vector_store.milvus.database"),
					TLS:        viper.GetBool("knowledge.vector_store.milvus.tls"),
					Distance:   viper.GetString("knowledge.vector_store.milvus.distance"),
				},
			},
			Embedding: EmbeddingConfig{
				APIKey:  viper.GetString("knowledge.embedding.api_key"),
				BaseURL: viper.GetString("knowledge.embedding.base_url"),
				Model:   viper.GetString("knowledge.embedding.model"),
			},
		},
		AI: AIConfig{
			APIKey:         viper.GetString("ai.api_key"),
			BaseURL:        viper.GetString("ai.base_url"),
			Model:          viper.GetString("ai.model"),
			MaxTokens:      viper.GetInt("ai.max_tokens"),
			Temperature:    viper.GetFloat64("ai.temperature"),
			TimeoutSeconds: viper.GetInt("ai.timeout_seconds"),
			HistorySize:    viper.GetInt("ai.history_size"),
		},
		Redis: RedisConfig{
			Enabled: viper.GetBool("redis.enabled"),
			Host:    viper.GetString("redis.host"),
			Port:    viper.GetString("redis.port"),
			DB:      viper.GetInt("redis.db"),
			TTL:     viper.GetInt("redis.ttl"),
		},
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

// Validate 校验配置合法性
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

// GetAppConfig 获取全局配置
func GetAppConfig() *Config {
	return AppConfig
}
