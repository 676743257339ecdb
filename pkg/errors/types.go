// Package errors provides structured errors for the uplift pipelines.
// Every failure that crosses a step boundary carries a code from the
// taxonomy below plus arbitrary context (resource ids, bounds, URLs) so the
// orchestrator can log and classify it without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode classifies a pipeline failure.
type ErrorCode string

const (
	// Provisioning: sandbox creation, clone, dependency install, process launch.
	ErrCodeProvision ErrorCode = "PROVISION_FAILED"

	// Polling: a bounded wait elapsed before the resource reached a terminal state.
	ErrCodeTimeout ErrorCode = "POLL_TIMEOUT"

	// Generation output: text-generation response was not the expected JSON shape.
	ErrCodeParse ErrorCode = "OUTPUT_PARSE"

	// Configuration: a required key or URL is missing at the point of use.
	ErrCodeConfig ErrorCode = "CONFIG_MISSING"

	// Lookups: an entity id resolved to no record.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Record store failures.
	ErrCodeStorageRead  ErrorCode = "STORAGE_READ"
	ErrCodeStorageWrite ErrorCode = "STORAGE_WRITE"

	// External collaborators.
	ErrCodeBrowserTask  ErrorCode = "BROWSER_TASK"
	ErrCodeAIGeneration ErrorCode = "AI_GENERATION"

	// Fallback.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error is a structured uplift error.
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Context    map[string]any
}

// New creates a structured error with the given code.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap annotates an existing error with a code and message. Returns nil for
// a nil err so call sites can wrap unconditionally.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]any),
	}
}

// NewTimeout builds the POLL_TIMEOUT error for a bounded wait that elapsed.
// The resource id and the bound that was exceeded ride along as context.
func NewTimeout(resourceID string, bound time.Duration) *Error {
	return New(ErrCodeTimeout, fmt.Sprintf("%s did not reach a terminal state within %s", resourceID, bound)).
		WithContext("resource_id", resourceID).
		WithContext("max_wait", bound.String())
}

// WithContext attaches a key-value pair to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if len(e.Context) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s: %v", k, v)
			first = false
		}
		sb.WriteString("}")
	}
	if e.Underlying != nil {
		fmt.Fprintf(&sb, ": %v", e.Underlying)
	}
	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var structured *Error
	if !stderrors.As(err, &structured) {
		return false
	}
	return structured.Code == code
}

// GetCode extracts the code from the first structured error in the chain.
// Plain errors map to INTERNAL.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var structured *Error
	if !stderrors.As(err, &structured) {
		return ErrCodeInternal
	}
	return structured.Code
}
