// Package errors provides structured error handling for the sheets connector.
//
// Every failure surfaced to the host carries a Type (the error class) and a
// Code (the exact variant inside that class), so callers can branch on
// IsType / IsCode without parsing messages.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeAuth represents credential acquisition errors
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeFetch represents HTTP fetch errors
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeParse represents response parsing errors
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeType represents column type and value conversion errors
	ErrorTypeType ErrorType = "type"
	// ErrorTypeUnsupported represents operations the connector rejects
	ErrorTypeUnsupported ErrorType = "unsupported"
	// ErrorTypeConfig represents configuration and option errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Code identifies the exact error variant within an ErrorType.
type Code string

const (
	CodeMalformedKey        Code = "malformed_key"
	CodeTokenExchangeFailed Code = "token_exchange_failed"
	CodeEmptyToken          Code = "empty_token"

	CodeTransport        Code = "transport"
	CodeHTTPStatus       Code = "http_status"
	CodeInvalidRequest   Code = "invalid_request"
	CodeResponseTooLarge Code = "response_too_large"

	CodeUnexpectedFormat Code = "unexpected_format"
	CodeInvalidJSON      Code = "invalid_json"
	CodeMissingRows      Code = "missing_rows"

	CodeUnsupportedColumnType Code = "unsupported_column_type"
	CodeUnsupportedConversion Code = "unsupported_conversion"

	CodeUnsupportedOperation Code = "unsupported_operation"

	CodeMissingOption Code = "missing_option"
	CodeInvalidOption Code = "invalid_option"

	CodeInternal Code = "internal"
)

var codeTypes = map[Code]ErrorType{
	CodeMalformedKey:          ErrorTypeAuth,
	CodeTokenExchangeFailed:   ErrorTypeAuth,
	CodeEmptyToken:            ErrorTypeAuth,
	CodeTransport:             ErrorTypeFetch,
	CodeHTTPStatus:            ErrorTypeFetch,
	CodeInvalidRequest:        ErrorTypeFetch,
	CodeResponseTooLarge:      ErrorTypeFetch,
	CodeUnexpectedFormat:      ErrorTypeParse,
	CodeInvalidJSON:           ErrorTypeParse,
	CodeMissingRows:           ErrorTypeParse,
	CodeUnsupportedColumnType: ErrorTypeType,
	CodeUnsupportedConversion: ErrorTypeType,
	CodeUnsupportedOperation:  ErrorTypeUnsupported,
	CodeMissingOption:         ErrorTypeConfig,
	CodeInvalidOption:         ErrorTypeConfig,
	CodeInternal:              ErrorTypeInternal,
}

// TypeOf returns the ErrorType a code belongs to.
func (c Code) TypeOf() ErrorType {
	if t, ok := codeTypes[c]; ok {
		return t
	}
	return ErrorTypeInternal
}

// Detail keys shared across packages.
const (
	DetailStatusCode = "status_code"
	DetailColumn     = "column"
	DetailOption     = "option"
	DetailURL        = "url"
	DetailReason     = "reason"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Type:    code.TypeOf(),
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Type:    code.TypeOf(),
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    code.TypeOf(),
			Code:    code,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    code.TypeOf(),
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsCode checks if the outermost structured error carries the given code
func IsCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf returns the code of the outermost structured error, or "" when err
// is not one.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// HTTPStatus extracts the status code of a fetch/http_status error.
func HTTPStatus(err error) (int, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeHTTPStatus {
		return 0, false
	}
	code, ok := e.Details[DetailStatusCode].(int)
	return code, ok
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeTransport:
		return true
	case CodeHTTPStatus:
		status, _ := e.Details[DetailStatusCode].(int)
		return IsTransientStatus(status)
	default:
		return false
	}
}

// IsTransientStatus reports whether an HTTP status is worth retrying:
// server errors, request timeout and too many requests.
func IsTransientStatus(status int) bool {
	switch {
	case status >= 500 && status <= 599:
		return true
	case status == 408, status == 429:
		return true
	default:
		return false
	}
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
