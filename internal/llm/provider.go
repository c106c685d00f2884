package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/aihub/docqa-go/internal/errors"
)

// Provider 语言模型生成接口
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Ready() bool
}

// TranslateProviderError 将provider原始错误映射到错误分类体系。
// 所有对provider响应的解析集中在这一个函数里，调用方不做字符串匹配。
func TranslateProviderError(err error, timeout time.Duration) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewGenerationTimeout(timeout, err)
	}

	status := 0
	message := ""

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		message = reqErr.Error()
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.NewUnauthorized(err)
	case status == http.StatusTooManyRequests:
		return apperrors.NewRateLimited(err)
	case status == http.StatusServiceUnavailable,
		strings.Contains(strings.ToLower(message), "loading"):
		return apperrors.NewModelColdStart(err)
	}

	return apperrors.NewGenerationFailed(err)
}
