package errors

import (
	"errors"
	"fmt"
)

// UnknownTagError is returned when a directive names a tag that has no
// registered renderer. Hosts decide whether to fail or drop the directive.
type UnknownTagError struct {
	Name string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag %q", e.Name)
}

// Is matches any UnknownTagError, so errors.Is(err, &UnknownTagError{}) works
// regardless of the name.
func (e *UnknownTagError) Is(target error) bool {
	_, ok := target.(*UnknownTagError)
	return ok
}

// IsUnknownTag reports whether err wraps an UnknownTagError.
func IsUnknownTag(err error) bool {
	var ute *UnknownTagError
	return errors.As(err, &ute)
}

// ErrUnknownTag creates an UnknownTagError.
func ErrUnknownTag(name string) *UnknownTagError {
	return &UnknownTagError{Name: name}
}

// SyntaxError reports a malformed directive in page source.
type SyntaxError struct {
	Code    string
	File    string
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// AsEmbedError converts directive-level failures into a located EmbedError.
// Errors that are already EmbedErrors are returned unchanged.
func AsEmbedError(err error, file string, line, column int) *EmbedError {
	var ee *EmbedError
	if errors.As(err, &ee) {
		return ee
	}

	var ute *UnknownTagError
	if errors.As(err, &ute) {
		return (&EmbedError{
			Type:        ErrorTypeRender,
			Code:        ErrCodeUnknownTag,
			Message:     "no renderer registered",
			Cause:       err,
			Recoverable: true,
		}).WithTag(ute.Name).WithLocation(file, line, column)
	}

	var se *SyntaxError
	if errors.As(err, &se) {
		code := se.Code
		if code == "" {
			code = ErrCodeUnterminated
		}
		if se.File != "" {
			file = se.File
		}
		return (&EmbedError{
			Type:        ErrorTypeSyntax,
			Code:        code,
			Message:     se.Message,
			Recoverable: true,
		}).WithLocation(file, se.Line, se.Column)
	}

	return NewInternalError(ErrCodeInternalError, "unexpected error", err).
		WithLocation(file, line, column)
}
