// Package errors provides the structured error types shared by the registry,
// the directive expander and the site builder, plus a collector that
// aggregates per-page failures during a build.
package errors

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"time"
)

// BuildError represents a failure while expanding one page
type BuildError struct {
	Tag       string        `json:"tag,omitempty" yaml:"tag,omitempty"`
	File      string        `json:"file" yaml:"file"`
	Line      int           `json:"line" yaml:"line"`
	Column    int           `json:"column" yaml:"column"`
	Message   string        `json:"message" yaml:"message"`
	Severity  ErrorSeverity `json:"severity" yaml:"severity"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name
func (s ErrorSeverity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *ErrorSeverity) UnmarshalText(text []byte) error {
	for _, candidate := range []ErrorSeverity{ErrorSeverityInfo, ErrorSeverityWarning, ErrorSeverityError, ErrorSeverityFatal} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Error implements the error interface
func (be *BuildError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", be.File, be.Line, be.Column, be.Severity, be.Message)
}

// FromError turns any error into a BuildError for file, keeping the location
// carried by an EmbedError when there is one.
func FromError(file string, err error) BuildError {
	be := BuildError{
		File:     file,
		Message:  err.Error(),
		Severity: ErrorSeverityError,
	}

	var ee *EmbedError
	if errors.As(err, &ee) {
		be.Tag = ee.Tag
		be.Line = ee.Line
		be.Column = ee.Column
		be.Message = ee.Message
		if ee.FilePath != "" {
			be.File = ee.FilePath
		}
		if ee.Cause != nil {
			be.Message += ": " + ee.Cause.Error()
		}
	}

	return be
}

// ErrorCollector collects build errors and general errors
type ErrorCollector struct {
	buildErrors []BuildError
	errors      []error
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]BuildError, 0),
		errors:      make([]error, 0),
	}
}

// Add adds a build error to the collector
func (ec *ErrorCollector) Add(err BuildError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	ec.buildErrors = append(ec.buildErrors, err)
}

// AddError adds a general error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// GetErrors returns collected build errors ordered by file and position
func (ec *ErrorCollector) GetErrors() []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	result := make([]BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].File != result[j].File {
			return result[i].File < result[j].File
		}
		if result[i].Line != result[j].Line {
			return result[i].Line < result[j].Line
		}
		return result[i].Column < result[j].Column
	})
	return result
}

// GetAllErrors returns all collected errors (build and general)
func (ec *ErrorCollector) GetAllErrors() []error {
	buildErrors := ec.GetErrors()

	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	allErrors := make([]error, 0, len(buildErrors)+len(ec.errors))
	for i := range buildErrors {
		allErrors = append(allErrors, &buildErrors[i])
	}
	allErrors = append(allErrors, ec.errors...)

	return allErrors
}

// Err joins everything collected into a single error, or nil.
func (ec *ErrorCollector) Err() error {
	return errors.Join(ec.GetAllErrors()...)
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.buildErrors) > 0 || len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = ec.buildErrors[:0]
	ec.errors = ec.errors[:0]
}

// GetErrorsByFile returns errors for a specific file
func (ec *ErrorCollector) GetErrorsByFile(file string) []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileErrors []BuildError
	for _, err := range ec.buildErrors {
		if err.File == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// GetErrorsByTag returns errors raised by a specific tag
func (ec *ErrorCollector) GetErrorsByTag(tag string) []BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var tagErrors []BuildError
	for _, err := range ec.buildErrors {
		if err.Tag == tag {
			tagErrors = append(tagErrors, err)
		}
	}
	return tagErrors
}

// ErrorOverlay generates an HTML overlay listing build errors, injected into
// preview pages while the last build is failing.
func (ec *ErrorCollector) ErrorOverlay() string {
	errs := ec.GetErrors()
	if len(errs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div id="vidembed-error-overlay" style="position:fixed;top:0;left:0;width:100%;height:100%;` +
		`background:rgba(0,0,0,0.85);color:#fff;font-family:monospace;font-size:14px;z-index:9999;` +
		`padding:20px;box-sizing:border-box;overflow:auto;">`)
	b.WriteString(`<h2 style="margin:0 0 20px;color:#ff6b6b;">Build Errors</h2>`)

	for _, err := range errs {
		color := "#ff6b6b"
		switch err.Severity {
		case ErrorSeverityWarning:
			color = "#feca57"
		case ErrorSeverityInfo:
			color = "#48dbfb"
		}

		fmt.Fprintf(&b,
			`<div style="background:#2d3748;padding:12px;margin-bottom:12px;border-left:4px solid %s;">`+
				`<strong style="color:%s;">%s</strong> <span>%s</span>`+
				`<div style="color:#a0aec0;font-size:12px;">%s:%d:%d</div></div>`,
			color, color, err.Severity, html.EscapeString(err.Message),
			html.EscapeString(err.File), err.Line, err.Column)
	}

	b.WriteString(`</div>`)

	return b.String()
}
