package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("HUGGINGFACE_API_KEY", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")

	err := LoadConfig()
	assert.NoError(t, err)

	cfg := GetAppConfig()
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 4, cfg.Knowledge.TopK)
	assert.Equal(t, 4, cfg.Knowledge.MaxParallel)
	assert.Equal(t, "local", cfg.Knowledge.VectorStore.Provider)
	assert.Equal(t, "./chroma_db/index.json", cfg.Knowledge.VectorStore.Path)
	assert.Equal(t, "text-embedding-3-small", cfg.Knowledge.Embedding.Model)

	assert.Equal(t, "meta-llama/Meta-Llama-3-8B-Instruct", cfg.AI.Model)
	assert.Equal(t, 512, cfg.AI.MaxTokens)
	assert.InDelta(t, 0.1, cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 120, cfg.AI.TimeoutSeconds)
	assert.Equal(t, 5, cfg.AI.HistorySize)

	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Knowledge.Search.Elasticsearch.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("DOCQA_KNOWLEDGE_CHUNK_SIZE", "500")
	t.Setenv("DOCQA_KNOWLEDGE_TOP_K", "8")
	t.Setenv("DOCQA_AI_MODEL", "mistralai/Mistral-7B-Instruct-v0.2")

	err := LoadConfig()
	assert.NoError(t, err)

	cfg := GetAppConfig()
	assert.Equal(t, 500, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 8, cfg.Knowledge.TopK)
	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.2", cfg.AI.Model)
}

func TestLoadConfigCredentialsFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("HUGGINGFACE_API_KEY", "hf_test_key")
	t.Setenv("OPENAI_API_KEY", "sk_test_key")

	err := LoadConfig()
	assert.NoError(t, err)

	cfg := GetAppConfig()
	// 生成端优先用HF密钥，嵌入端用OpenAI密钥
	assert.Equal(t, "hf_test_key", cfg.AI.APIKey)
	assert.Equal(t, "sk_test_key", cfg.Knowledge.Embedding.APIKey)
}

func TestLoadConfigOpenAIKeyFallsBackToGeneration(t *testing.T) {
	viper.Reset()
	t.Setenv("HUGGINGFACE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk_only_key")

	err := LoadConfig()
	assert.NoError(t, err)

	cfg := GetAppConfig()
	assert.Equal(t, "sk_only_key", cfg.AI.APIKey)
}

func TestLoadConfigRedisEnabledByHostEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")

	err := LoadConfig()
	assert.NoError(t, err)

	cfg := GetAppConfig()
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, "6380", cfg.Redis.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	viper.Reset()
	err := LoadConfig()
	assert.NoError(t, err)

	cfg := *GetAppConfig()
	cfg.Knowledge.ChunkOverlap = cfg.Knowledge.ChunkSize + 100
	assert.Error(t, Validate(&cfg))

	cfg = *GetAppConfig()
	cfg.Knowledge.TopK = 0
	assert.Error(t, Validate(&cfg))

	cfg = *GetAppConfig()
	cfg.Knowledge.VectorStore.Provider = "pinecone"
	assert.Error(t, Validate(&cfg))
}
