package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"

	ErrCodeInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrCodeEmbeddingFailure     = "EMBEDDING_FAILURE"
	ErrCodeIndexWriteFailure    = "INDEX_WRITE_FAILURE"
	ErrCodeRetrievalFailure     = "RETRIEVAL_FAILURE"
	ErrCodeCompletionFailure    = "COMPLETION_FAILURE"
	ErrCodePersistenceFailure   = "PERSISTENCE_FAILURE"
)

// Validation errors
var (
	ErrInvalidContentType   = NewDomainError(ErrCodeValidation, "invalid content type")
	ErrInvalidMessageRole   = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrMissingTenant        = NewDomainError(ErrCodeValidation, "tenant id is required")
)

// Not found errors
var (
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
)

// Pipeline errors
var (
	ErrInvalidChunkConfig = NewDomainError(ErrCodeInvalidConfiguration, "chunk overlap must be smaller than chunk size")
	ErrTurnInProgress     = NewDomainError(ErrCodeInvalidOperation, "a turn is already in progress for this conversation")
)

// EmbeddingError wraps an upstream embedding failure. Indexing and retrieval
// abort on it; the old index is left untouched.
func EmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingFailure, "embedding generation failed", err)
}

// IndexWriteError wraps a vector store write failure during re-indexing.
func IndexWriteError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeIndexWriteFailure, "failed to write knowledge chunks", err)
}

// RetrievalError wraps a similarity search failure.
func RetrievalError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeRetrievalFailure, "similarity search failed", err)
}

// CompletionError wraps a chat completion failure.
func CompletionError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeCompletionFailure, "completion generation failed", err)
}

// PersistenceError wraps a conversation store write failure.
func PersistenceError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodePersistenceFailure, "failed to persist conversation turn", err)
}
