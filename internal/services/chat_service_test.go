package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/aihub/docqa-go/internal/errors"
	"github.com/aihub/docqa-go/internal/knowledge"
)

// stubRetriever 固定返回预设chunk
type stubRetriever struct {
	chunks []knowledge.Chunk
	err    error
}

func (r *stubRetriever) Retrieve(ctx context.Context, question string, k int) ([]knowledge.Chunk, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.chunks) > k {
		return r.chunks[:k], nil
	}
	return r.chunks, nil
}

// stubProvider 记录收到的提示词并返回预设应答
type stubProvider struct {
	response string
	err      error
	prompts  []string
}

func (p *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func (p *stubProvider) Ready() bool {
	return true
}

func newTestChat(retriever ChunkRetriever, provider *stubProvider) *ChatService {
	return NewChatService(retriever, provider, ChatOptions{
		TopK:        4,
		HistorySize: 5,
		Timeout:     30 * time.Second,
	})
}

func TestAskReturnsAnswerWithSources(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	provider := &stubProvider{response: "The notice period is 4 weeks."}
	chat := newTestChat(retriever, provider)

	answer, err := chat.Ask(context.Background(), "What is the notice period?")
	assert.NoError(t, err)
	assert.Equal(t, "The notice period is 4 weeks.", answer.Text)
	assert.Len(t, answer.Sources, 2)
	assert.Equal(t, 2, answer.NumChunks)
}

func TestAskComposesGroundedPrompt(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	provider := &stubProvider{response: "ok"}
	chat := newTestChat(retriever, provider)

	_, err := chat.Ask(context.Background(), "What is the notice period?")
	assert.NoError(t, err)
	assert.Len(t, provider.prompts, 1)

	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "ONLY use information from the CONTEXT")
	assert.Contains(t, prompt, "The notice period is 4 weeks.")
	assert.Contains(t, prompt, "QUESTION: What is the notice period?")
}

func TestAskAppendsMemoryOnSuccess(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	provider := &stubProvider{response: "answer one"}
	chat := newTestChat(retriever, provider)

	_, err := chat.Ask(context.Background(), "q1")
	assert.NoError(t, err)
	assert.Len(t, chat.History(), 1)
	assert.Equal(t, "q1", chat.History()[0].Question)
	assert.Equal(t, "answer one", chat.History()[0].Answer)

	// 第二个问题的提示词携带第一轮历史
	provider.response = "answer two"
	_, err = chat.Ask(context.Background(), "q2")
	assert.NoError(t, err)
	assert.Contains(t, provider.prompts[1], "User: q1\nAssistant: answer one")
}

func TestAskMemoryUntouchedOnGenerationFailure(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	provider := &stubProvider{err: &openai.APIError{HTTPStatusCode: 503, Message: "model is loading"}}
	chat := newTestChat(retriever, provider)

	_, err := chat.Ask(context.Background(), "q1")
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeModelColdStart, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
	assert.Empty(t, chat.History())
}

func TestAskMemoryUntouchedOnRetrievalFailure(t *testing.T) {
	retriever := &stubRetriever{err: apperrors.NewEmptyIndex("test-store")}
	provider := &stubProvider{response: "never reached"}
	chat := newTestChat(retriever, provider)

	_, err := chat.Ask(context.Background(), "q1")
	assert.Equal(t, apperrors.ErrCodeEmptyIndex, apperrors.CodeOf(err))
	assert.Empty(t, chat.History())
	assert.Empty(t, provider.prompts)
}

func TestAskClassifiesProviderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code apperrors.ErrorCode
	}{
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401}, apperrors.ErrCodeUnauthorized},
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, apperrors.ErrCodeRateLimited},
		{"cold start", &openai.APIError{HTTPStatusCode: 503}, apperrors.ErrCodeModelColdStart},
		{"timeout", context.DeadlineExceeded, apperrors.ErrCodeGenerationTimeout},
		{"unknown", errors.New("boom"), apperrors.ErrCodeGenerationFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retriever := &stubRetriever{chunks: sampleChunks()}
			provider := &stubProvider{err: tc.err}
			chat := newTestChat(retriever, provider)

			_, err := chat.Ask(context.Background(), "q")
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
			assert.Empty(t, chat.History())
		})
	}
}

// groundedStubProvider 模拟遵守指令的模型：问题关键词在上下文里
// 才作答，否则按指令声明找不到
type groundedStubProvider struct{}

func (p *groundedStubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctxStart := strings.Index(prompt, "CONTEXT:")
	qStart := strings.Index(prompt, "QUESTION:")
	contextBlock := prompt[ctxStart:qStart]
	question := strings.ToLower(prompt[qStart:])

	for _, keyword := range strings.Fields(question) {
		keyword = strings.Trim(keyword, "?.,:")
		if len(keyword) > 6 && strings.Contains(strings.ToLower(contextBlock), keyword) {
			return "Based on the context: " + keyword, nil
		}
	}
	return "I cannot find this information in the provided documents.", nil
}

func (p *groundedStubProvider) Ready() bool { return true }

func TestAskOutOfScopeQuestionDeclines(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	chat := NewChatService(retriever, &groundedStubProvider{}, ChatOptions{})

	answer, err := chat.Ask(context.Background(), "What is the capital of Mongolia?")
	assert.NoError(t, err)
	assert.Contains(t, answer.Text, "I cannot find this information in the provided documents.")

	answer, err = chat.Ask(context.Background(), "What about dismissal rules?")
	assert.NoError(t, err)
	assert.Contains(t, answer.Text, "dismissal")
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	chat := newTestChat(&stubRetriever{}, &stubProvider{})

	_, err := chat.Ask(context.Background(), "   ")
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestAskNoContextShortCircuits(t *testing.T) {
	retriever := &stubRetriever{chunks: nil}
	provider := &stubProvider{response: "never reached"}
	chat := newTestChat(retriever, provider)

	answer, err := chat.Ask(context.Background(), "q")
	assert.NoError(t, err)
	assert.Equal(t, 0, answer.NumChunks)
	assert.Empty(t, provider.prompts)
	assert.Empty(t, chat.History())
}

func TestAskStripsEchoedPrompt(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	provider := &stubProvider{}
	chat := newTestChat(retriever, provider)

	// 先拿到真实提示词，再模拟模型把提示词原样回显
	_, err := chat.Ask(context.Background(), "warmup")
	assert.NoError(t, err)
	chat.ClearMemory()

	provider.response = provider.prompts[0] + "\n\nThe actual answer."
	provider.prompts = nil
	answer, err := chat.Ask(context.Background(), "warmup")
	assert.NoError(t, err)
	assert.Equal(t, "The actual answer.", answer.Text)
}

func TestClearMemory(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	provider := &stubProvider{response: "a"}
	chat := newTestChat(retriever, provider)

	_, err := chat.Ask(context.Background(), "q")
	assert.NoError(t, err)
	assert.NotEmpty(t, chat.History())

	chat.ClearMemory()
	assert.Empty(t, chat.History())
}

func TestHistoryBounded(t *testing.T) {
	retriever := &stubRetriever{chunks: sampleChunks()}
	provider := &stubProvider{response: "a"}
	chat := newTestChat(retriever, provider)

	for i := 0; i < 8; i++ {
		_, err := chat.Ask(context.Background(), "question")
		assert.NoError(t, err)
	}
	assert.Len(t, chat.History(), 5)
}

func TestSessionIDUnique(t *testing.T) {
	a := newTestChat(&stubRetriever{}, &stubProvider{})
	b := newTestChat(&stubRetriever{}, &stubProvider{})

	assert.NotEmpty(t, a.SessionID())
	assert.NotEqual(t, a.SessionID(), b.SessionID())
}

func TestPostProcessTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "clean", postProcess("  \n clean \n\n", ""))
	assert.Equal(t, "clean", postProcess("Answer: clean", ""))
}
