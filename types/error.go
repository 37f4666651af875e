package types

import "fmt"

// ErrorCode represents a unified error code across the agent.
type ErrorCode string

// Orchestrator error codes
const (
	ErrClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrUnknownRoute         ErrorCode = "UNKNOWN_ROUTE"
	ErrSynthesisFailed      ErrorCode = "SYNTHESIS_FAILED"
	ErrEvaluationFailed     ErrorCode = "EVALUATION_FAILED"
)

// Retrieval error codes
const (
	ErrEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
	ErrVectorSearch     ErrorCode = "VECTOR_SEARCH_FAILED"
	ErrLexicalSearch    ErrorCode = "LEXICAL_SEARCH_FAILED"
	ErrWebSearch        ErrorCode = "WEB_SEARCH_FAILED"
	ErrIndexUnavailable ErrorCode = "INDEX_UNAVAILABLE"
)

// Infrastructure error codes
const (
	ErrCheckpointFailed ErrorCode = "CHECKPOINT_FAILED"
	ErrTimeout          ErrorCode = "TIMEOUT"
	ErrUpstreamError    ErrorCode = "UPSTREAM_ERROR"
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
