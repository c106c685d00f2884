package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 输入与分块错误
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeChunking      ErrorCode = "CHUNKING_ERROR"
	ErrCodeUnreadablePDF ErrorCode = "UNREADABLE_PDF"

	// 索引层错误
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	ErrCodeDimensionMismatch    ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeEmptyIndex           ErrorCode = "EMPTY_INDEX"

	// 生成层错误
	ErrCodeModelColdStart    ErrorCode = "MODEL_COLD_START"
	ErrCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout ErrorCode = "GENERATION_TIMEOUT"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	Type       ErrorType     `json:"type"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"-"`
	Cause      error         `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 支持按错误码匹配
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// As 包装标准库errors.As，调用方无需同时导入两个errors包
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf 提取错误码，非AppError返回空串
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRetryable 检查错误是否可由调用方退避重试
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// RetryAfterOf 返回建议等待时间，不可重试时为0
func RetryAfterOf(err error) time.Duration {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.RetryAfter
	}
	return 0
}

// 错误构造函数

// NewInvalidInput 创建输入校验错误
func NewInvalidInput(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: message,
		Type:    ErrorTypeBusiness,
	}
}

// NewChunkingError 创建分块错误
func NewChunkingError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeChunking,
		Message: message,
		Type:    ErrorTypeBusiness,
	}
}

// NewUnreadablePDF 创建文档解析错误
func NewUnreadablePDF(path string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeUnreadablePDF,
		Message: fmt.Sprintf("无法读取文档 %s，请确认文件存在、格式正确且未损坏", path),
		Type:    ErrorTypeBusiness,
		Cause:   cause,
	}
}

// NewEmbeddingUnavailable 创建嵌入模型不可用错误
func NewEmbeddingUnavailable(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeEmbeddingUnavailable,
		Message: "嵌入模型不可用，请检查embedding配置与网络连接",
		Type:    ErrorTypeExternal,
		Cause:   cause,
	}
}

// NewDimensionMismatch 创建向量维度不匹配错误
func NewDimensionMismatch(want, got int) *AppError {
	return &AppError{
		Code:    ErrCodeDimensionMismatch,
		Message: fmt.Sprintf("向量维度不匹配：索引为%d维，查询为%d维，更换嵌入模型后需要force重建索引", want, got),
		Type:    ErrorTypeSystem,
	}
}

// NewEmptyIndex 创建空索引错误
func NewEmptyIndex(identity string) *AppError {
	return &AppError{
		Code:    ErrCodeEmptyIndex,
		Message: fmt.Sprintf("索引 %s 为空，请先执行ingest构建索引", identity),
		Type:    ErrorTypeBusiness,
	}
}

// NewModelColdStart 创建模型冷启动错误（可重试）
func NewModelColdStart(cause error) *AppError {
	return &AppError{
		Code:       ErrCodeModelColdStart,
		Message:    "模型正在加载（冷启动），请等待约30秒后重试",
		Type:       ErrorTypeExternal,
		Retryable:  true,
		RetryAfter: 30 * time.Second,
		Cause:      cause,
	}
}

// NewRateLimited 创建限流错误（可重试）
func NewRateLimited(cause error) *AppError {
	return &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "请求被限流，请等待约60秒后重试",
		Type:       ErrorTypeExternal,
		Retryable:  true,
		RetryAfter: 60 * time.Second,
		Cause:      cause,
	}
}

// NewUnauthorized 创建认证失败错误（不可重试）
func NewUnauthorized(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: "API密钥无效，请检查环境变量中的凭证后重新启动",
		Type:    ErrorTypeExternal,
		Cause:   cause,
	}
}

// NewGenerationFailed 创建通用生成失败错误
func NewGenerationFailed(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeGenerationFailed,
		Message: "生成回答失败",
		Type:    ErrorTypeExternal,
		Cause:   cause,
	}
}

// NewGenerationTimeout 创建生成超时错误
func NewGenerationTimeout(timeout time.Duration, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeGenerationTimeout,
		Message: fmt.Sprintf("生成回答超时（%s），可适当调大ai.timeout配置", timeout),
		Type:    ErrorTypeExternal,
		Cause:   cause,
	}
}
