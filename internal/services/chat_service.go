package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/aihub/docqa-go/internal/errors"
	"github.com/aihub/docqa-go/internal/knowledge"
	"github.com/aihub/docqa-go/internal/llm"
	"github.com/aihub/docqa-go/internal/logger"
)

// ChunkRetriever 检索依赖的窄接口
type ChunkRetriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]knowledge.Chunk, error)
}

// Answer 单次问答结果，每次查询新建，核心不做持久化
type Answer struct {
	Text      string            `json:"answer"`
	Sources   []knowledge.Chunk `json:"sources"`
	NumChunks int               `json:"num_chunks"`
}

// ChatService 问答服务。每个问题走一轮
// 检索→组装→生成→后处理，任一环节失败时对话记忆保持不变。
type ChatService struct {
	sessionID string
	retriever ChunkRetriever
	provider  llm.Provider
	prompts   *PromptBuilder
	memory    *ConversationMemory
	topK      int
	timeout   time.Duration
	log       *zap.Logger
}

// ChatOptions 问答服务配置
type ChatOptions struct {
	TopK        int
	HistorySize int
	Timeout     time.Duration
	Instruction string
}

// NewChatService 创建问答服务，对话记忆生命周期与会话一致
func NewChatService(retriever ChunkRetriever, provider llm.Provider, opts ChatOptions) *ChatService {
	if opts.TopK <= 0 {
		opts.TopK = knowledge.DefaultTopK
	}
	return &ChatService{
		sessionID: uuid.NewString(),
		retriever: retriever,
		provider:  provider,
		prompts:   NewPromptBuilder(opts.Instruction),
		memory:    NewConversationMemory(opts.HistorySize),
		topK:      opts.TopK,
		timeout:   opts.Timeout,
		log:       logger.GetLogger(),
	}
}

// SessionID 当前会话标识
func (s *ChatService) SessionID() string {
	return s.sessionID
}

// History 对话历史快照
func (s *ChatService) History() []Turn {
	return s.memory.Snapshot()
}

// ClearMemory 重置对话记忆
func (s *ChatService) ClearMemory() {
	s.memory.Clear()
}

// Ask 回答一个问题。失败时返回分类后的错误且不写入对话记忆。
func (s *ChatService) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.NewInvalidInput("问题不能为空")
	}

	started := time.Now()

	// 检索阶段
	chunks, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		return nil, err
	}
	ObserveRetrieval(time.Since(started))

	if len(chunks) == 0 {
		// 无可用上下文按正常结果返回，不污染对话记忆
		return &Answer{
			Text:      "No relevant documents found in the index.",
			Sources:   []knowledge.Chunk{},
			NumChunks: 0,
		}, nil
	}

	// 组装阶段
	prompt, err := s.prompts.Build(s.memory.Snapshot(), chunks, question)
	if err != nil {
		return nil, apperrors.NewGenerationFailed(err)
	}

	// 生成阶段：阻塞调用前后都检查取消信号，放弃的请求不落记忆
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewGenerationTimeout(s.timeout, err)
	}

	raw, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		appErr := llm.TranslateProviderError(err, s.timeout)
		CountGenerationFailure(string(appErr.Code))
		s.log.Warn("生成失败",
			zap.String("session", s.sessionID),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
		return nil, appErr
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewGenerationTimeout(s.timeout, err)
	}

	// 后处理阶段
	answer := postProcess(raw, prompt)

	s.memory.Append(Turn{Question: question, Answer: answer})
	CountQuery()

	s.log.Info("回答完成",
		zap.String("session", s.sessionID),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(started)))

	return &Answer{
		Text:      answer,
		Sources:   chunks,
		NumChunks: len(chunks),
	}, nil
}

// postProcess 剥离模型附带的杂质：回显的提示词前缀与首尾空白
func postProcess(raw, prompt string) string {
	answer := strings.TrimSpace(raw)
	if prompt != "" && strings.HasPrefix(answer, strings.TrimSpace(prompt)) {
		answer = strings.TrimSpace(strings.TrimPrefix(answer, strings.TrimSpace(prompt)))
	}
	answer = strings.TrimPrefix(answer, "Answer:")
	return strings.TrimSpace(answer)
}
