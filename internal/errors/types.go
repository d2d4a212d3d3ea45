package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeSyntax     ErrorType = "syntax"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnknownTag       = "ERR_UNKNOWN_TAG"
	ErrCodeUnterminated     = "ERR_UNTERMINATED_DIRECTIVE"
	ErrCodeEmptyDirective   = "ERR_EMPTY_DIRECTIVE"
	ErrCodeInvalidTag       = "ERR_INVALID_TAG"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// EmbedError is a structured error type with context.
type EmbedError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Tag         string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *EmbedError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Tag != "" {
		parts = append(parts, "tag:"+e.Tag)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *EmbedError) Unwrap() error {
	return e.Cause
}

// Is matches another EmbedError with the same type and code.
func (e *EmbedError) Is(target error) bool {
	var t *EmbedError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *EmbedError) WithContext(key string, value interface{}) *EmbedError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *EmbedError) WithLocation(filePath string, line, column int) *EmbedError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithTag adds the tag name the error relates to.
func (e *EmbedError) WithTag(tag string) *EmbedError {
	e.Tag = tag

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *EmbedError {
	return &EmbedError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *EmbedError {
	return &EmbedError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *EmbedError {
	return &EmbedError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *EmbedError {
	return &EmbedError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *EmbedError {
	return &EmbedError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ee *EmbedError
	if errors.As(err, &ee) {
		return ee.Recoverable
	}

	return false
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	var ee *EmbedError
	if errors.As(err, &ee) {
		return ee.Type == ErrorTypeBuild
	}

	return false
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *EmbedError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrInvalidTag creates a tag definition error.
func ErrInvalidTag(name, reason string) *EmbedError {
	return NewValidationError(ErrCodeInvalidTag, reason).WithTag(name)
}

// ErrBuildFailed creates a build failure error for a page.
func ErrBuildFailed(path string, cause error) *EmbedError {
	return NewBuildError(ErrCodeBuildFailed, "build failed for page: "+path, cause)
}
