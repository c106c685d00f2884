package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewEmptyIndex("./index.json")

	assert.Contains(t, err.Error(), "./index.json")
	assert.Equal(t, ErrCodeEmptyIndex, err.Code)
	assert.Nil(t, err.Unwrap())
}

func TestAppErrorWrapsCause(t *testing.T) {
	cause := stderrors.New("disk failure")
	err := NewUnreadablePDF("/docs/a.pdf", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk failure")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeRateLimited, CodeOf(NewRateLimited(nil)))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))

	// 包装后仍能提取错误码
	wrapped := fmt.Errorf("outer: %w", NewUnauthorized(nil))
	assert.Equal(t, ErrCodeUnauthorized, CodeOf(wrapped))
}

func TestRetryableSemantics(t *testing.T) {
	cold := NewModelColdStart(nil)
	assert.True(t, IsRetryable(cold))
	assert.Equal(t, 30*time.Second, RetryAfterOf(cold))

	limited := NewRateLimited(nil)
	assert.True(t, IsRetryable(limited))
	assert.Equal(t, 60*time.Second, RetryAfterOf(limited))

	// 认证失败重试无意义
	fatal := NewUnauthorized(nil)
	assert.False(t, IsRetryable(fatal))
	assert.Equal(t, time.Duration(0), RetryAfterOf(fatal))

	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestIsMatchesByCode(t *testing.T) {
	a := NewEmptyIndex("store-a")
	b := NewEmptyIndex("store-b")

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, NewRateLimited(nil))
}

func TestDimensionMismatchMessage(t *testing.T) {
	err := NewDimensionMismatch(1536, 768)

	assert.Contains(t, err.Error(), "1536")
	assert.Contains(t, err.Error(), "768")
	assert.Equal(t, ErrCodeDimensionMismatch, err.Code)
}

func TestGenerationTimeoutMessage(t *testing.T) {
	err := NewGenerationTimeout(90*time.Second, nil)

	assert.Contains(t, err.Error(), "1m30s")
}

func TestAsHelper(t *testing.T) {
	var appErr *AppError
	assert.True(t, As(NewChunkingError("bad"), &appErr))
	assert.Equal(t, ErrCodeChunking, appErr.Code)
	assert.False(t, As(stderrors.New("plain"), &appErr))
}
