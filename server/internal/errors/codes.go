package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for chat operations.
type ErrorCode string

const (
	// ErrCodeSessionLimitExceeded indicates the session reached its round limit.
	ErrCodeSessionLimitExceeded ErrorCode = "SESSION_LIMIT_EXCEEDED"
	// ErrCodeSessionNotFound indicates the requested session does not exist or has expired.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrCodeRetrievalFailed indicates the knowledge retrieval step failed.
	ErrCodeRetrievalFailed ErrorCode = "RETRIEVAL_FAILED"
	// ErrCodeGenerationFailed indicates the LLM completion failed.
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
	// ErrCodeConfigurationInvalid indicates invalid startup configuration.
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeRateLimitExceeded indicates the per-client request ceiling was hit.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeProcessingFailed is the generic catch-all for unexpected failures.
	ErrCodeProcessingFailed ErrorCode = "PROCESSING_FAILED"
)

// ChatError represents a structured error for chat operations.
type ChatError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *ChatError) WithContext(key string, value interface{}) *ChatError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *ChatError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// SessionLimitExceeded creates a round-limit error.
func SessionLimitExceeded(maxRounds int) *ChatError {
	return &ChatError{
		Code:    ErrCodeSessionLimitExceeded,
		Message: fmt.Sprintf("session reached the maximum of %d rounds", maxRounds),
		Context: map[string]interface{}{"max_rounds": maxRounds},
	}
}

// SessionNotFound creates a session-not-found error.
func SessionNotFound(sessionID string) *ChatError {
	return &ChatError{
		Code:    ErrCodeSessionNotFound,
		Message: fmt.Sprintf("session not found: %s", sessionID),
	}
}

// RetrievalFailed creates a retrieval failure error.
func RetrievalFailed(cause error) *ChatError {
	return &ChatError{Code: ErrCodeRetrievalFailed, Message: "knowledge retrieval failed", Cause: cause}
}

// GenerationFailed creates a generation failure error.
func GenerationFailed(cause error) *ChatError {
	return &ChatError{Code: ErrCodeGenerationFailed, Message: "reply generation failed", Cause: cause}
}

// ConfigurationInvalid creates a startup configuration error.
func ConfigurationInvalid(msg string) *ChatError {
	return &ChatError{Code: ErrCodeConfigurationInvalid, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *ChatError {
	return &ChatError{Code: ErrCodeInvalidArgument, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *ChatError {
	return &ChatError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ProcessingFailed wraps an unexpected error without exposing internals.
func ProcessingFailed(cause error) *ChatError {
	return &ChatError{Code: ErrCodeProcessingFailed, Message: "request processing failed", Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a ChatError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code
	}
	return defaultCode
}
