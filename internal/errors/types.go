// Package errors defines the structured error type shared by the whiteboard
// packages.
//
// Lookup misses (unknown module, unknown service, stopping a module that was
// never started) are not errors anywhere in the framework. The types here cover
// what is left: framework bookkeeping failures such as cyclic service
// construction, configuration problems, and context wrapped around errors
// returned by module and route code.
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
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeLifecycle  ErrorType = "lifecycle"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes.
const (
	CodeCyclicService   = "CYCLIC_SERVICE"
	CodeInvalidSelector = "INVALID_SELECTOR"
	CodeRootNotFound    = "ROOT_NOT_FOUND"
	CodeModuleFailed    = "MODULE_FAILED"
	CodeRouteFailed     = "ROUTE_FAILED"
	CodeInvalidConfig   = "INVALID_CONFIG"
	CodeInvalidFrame    = "INVALID_FRAME"
)

// Sentinels for errors.Is. Matching compares Type and Code only.
var (
	ErrCyclicService   = &WhiteboardError{Type: ErrorTypeInternal, Code: CodeCyclicService}
	ErrInvalidSelector = &WhiteboardError{Type: ErrorTypeValidation, Code: CodeInvalidSelector}
	ErrRootNotFound    = &WhiteboardError{Type: ErrorTypeLifecycle, Code: CodeRootNotFound}
)

// WhiteboardError is a structured error type with context.
type WhiteboardError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
}

// Error implements the error interface.
func (e *WhiteboardError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *WhiteboardError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *WhiteboardError) Is(target error) bool {
	var t *WhiteboardError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *WhiteboardError) WithContext(key string, value interface{}) *WhiteboardError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *WhiteboardError) WithComponent(component string) *WhiteboardError {
	e.Component = component

	return e
}

// NewCyclicServiceError reports a service whose factory requested itself,
// directly or through another service, before finishing.
func NewCyclicServiceError(name string, chain []string) *WhiteboardError {
	path := append(append([]string{}, chain...), name)

	return &WhiteboardError{
		Type:    ErrorTypeInternal,
		Code:    CodeCyclicService,
		Message: fmt.Sprintf("service %q requested during its own construction (%s)", name, strings.Join(path, " -> ")),
	}
}

// NewSelectorError reports a selector that could not be compiled.
func NewSelectorError(selector, reason string) *WhiteboardError {
	return &WhiteboardError{
		Type:    ErrorTypeValidation,
		Code:    CodeInvalidSelector,
		Message: fmt.Sprintf("invalid selector %q: %s", selector, reason),
	}
}

// NewRootNotFoundError reports a bootstrap selector that matched nothing.
func NewRootNotFoundError(selector string) *WhiteboardError {
	return &WhiteboardError{
		Type:    ErrorTypeLifecycle,
		Code:    CodeRootNotFound,
		Message: fmt.Sprintf("no element matches root selector %q", selector),
	}
}

// WrapModule attaches the module name and hook to an error returned by module
// code. The original error stays reachable through errors.Is/As.
func WrapModule(err error, module, hook string) error {
	if err == nil {
		return nil
	}

	return &WhiteboardError{
		Type:      ErrorTypeLifecycle,
		Code:      CodeModuleFailed,
		Message:   hook + " failed",
		Cause:     err,
		Component: module,
	}
}

// WrapRoute attaches the fragment to an error returned by a route handler.
func WrapRoute(err error, fragment string) error {
	if err == nil {
		return nil
	}

	return (&WhiteboardError{
		Type:    ErrorTypeLifecycle,
		Code:    CodeRouteFailed,
		Message: fmt.Sprintf("route handler for %q failed", fragment),
		Cause:   err,
	}).WithContext("fragment", fragment)
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *WhiteboardError {
	return &WhiteboardError{
		Type:    ErrorTypeConfig,
		Code:    CodeInvalidConfig,
		Message: message,
	}
}

// NewFrameError reports a websocket frame the session could not handle.
func NewFrameError(message string, cause error) *WhiteboardError {
	return &WhiteboardError{
		Type:    ErrorTypeNetwork,
		Code:    CodeInvalidFrame,
		Message: message,
		Cause:   cause,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, errType ErrorType, code, message string) *WhiteboardError {
	return &WhiteboardError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// IsType reports whether err is a WhiteboardError of the given type.
func IsType(err error, errType ErrorType) bool {
	var we *WhiteboardError
	if errors.As(err, &we) {
		return we.Type == errType
	}

	return false
}
