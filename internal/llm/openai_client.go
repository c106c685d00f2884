package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider 基于OpenAI兼容Chat API的生成客户端，
// 可通过baseURL指向任意兼容端点（含HuggingFace路由）
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// ProviderOptions 生成客户端配置
type ProviderOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewOpenAIProvider 创建生成客户端
func NewOpenAIProvider(opts ProviderOptions) *OpenAIProvider {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}

	var client *openai.Client
	if strings.TrimSpace(opts.APIKey) != "" {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		client = openai.NewClientWithConfig(cfg)
	}

	return &OpenAIProvider{
		client:      client,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: float32(opts.Temperature),
		timeout:     opts.Timeout,
	}
}

// Timeout 返回配置的生成超时，0表示不限制
func (p *OpenAIProvider) Timeout() time.Duration {
	return p.timeout
}

// Generate 调用Chat Completion生成文本。
// 这是流程中唯一的阻塞点，外部服务延迟不可控，超时由配置约束。
// 返回的是provider原始错误，分类交给TranslateProviderError。
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", errors.New("llm provider not configured")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion response empty")
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Ready() bool {
	return p.client != nil
}
