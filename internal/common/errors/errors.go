// Package errors provides the standardized error model shared by the HTTP
// surface and the workflow worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// UserMessage is the only error text ever shown to an end user.
const UserMessage = "Something went wrong. Please try again."

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidQuery         ErrorCode = "INVALID_QUERY"
	ErrCodeWebhookTimeout       ErrorCode = "WEBHOOK_TIMEOUT"
	ErrCodeWebhookHTTPError     ErrorCode = "WEBHOOK_HTTP_ERROR"
	ErrCodeWebhookUnreachable   ErrorCode = "WEBHOOK_UNREACHABLE"
	ErrCodeResponseDecodeFailed ErrorCode = "RESPONSE_DECODE_FAILED"
	ErrCodeCacheUnavailable     ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is keeps working across the
// conversion boundary.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// UserMessage returns the generic text shown to end users regardless of code.
func (e *StandardError) UserMessage() string {
	return UserMessage
}

// BPMNError represents an error thrown back to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for job fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidQueryError reports a query that failed validation.
func NewInvalidQueryError(details string) *StandardError {
	return newError(ErrCodeInvalidQuery, "Invalid search query", details, false, nil)
}

// NewWebhookTimeoutError reports a webhook call that exceeded its deadline.
func NewWebhookTimeoutError(cause error) *StandardError {
	return newError(ErrCodeWebhookTimeout, "Search webhook timed out", causeText(cause), false, cause)
}

// NewWebhookHTTPError reports a non-2xx webhook response.
func NewWebhookHTTPError(status int, cause error) *StandardError {
	e := newError(ErrCodeWebhookHTTPError, "Search webhook returned an error status",
		fmt.Sprintf("status: %d", status), false, cause)
	e.Metadata = map[string]interface{}{"status": status}
	return e
}

// NewWebhookUnreachableError reports a transport failure.
func NewWebhookUnreachableError(cause error) *StandardError {
	return newError(ErrCodeWebhookUnreachable, "Search webhook unreachable", causeText(cause), false, cause)
}

// NewResponseDecodeError reports a webhook body that is not a JSON object.
func NewResponseDecodeError(cause error) *StandardError {
	return newError(ErrCodeResponseDecodeFailed, "Search response could not be decoded", causeText(cause), false, cause)
}

// NewCacheUnavailableError reports a cache failure. Callers log it and carry on.
func NewCacheUnavailableError(cause error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Search cache unavailable", causeText(cause), true, cause)
}

// NewInternalError wraps anything that has no better classification.
func NewInternalError(cause error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", causeText(cause), false, cause)
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// AsStandardError returns err as a *StandardError, wrapping it as an internal
// error when it carries no classification.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// BPMNErrorMapping maps internal codes onto the error codes modelled in BPMN.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidQuery:         "INVALID_QUERY",
	ErrCodeWebhookTimeout:       "WEBHOOK_TIMEOUT",
	ErrCodeWebhookHTTPError:     "WEBHOOK_ERROR",
	ErrCodeWebhookUnreachable:   "WEBHOOK_ERROR",
	ErrCodeResponseDecodeFailed: "WEBHOOK_ERROR",
	ErrCodeCacheUnavailable:     "INTERNAL_ERROR",
	ErrCodeInternal:             "INTERNAL_ERROR",
}

// GetRetryCount returns how many times the engine may retry a job failing
// with code. Searches are never retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCacheUnavailable:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError into its BPMN form.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	code, ok := BPMNErrorMapping[stdErr.Code]
	if !ok {
		code = "INTERNAL_ERROR"
	}
	return &BPMNError{
		Code:      code,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   GetRetryCount(stdErr.Code),
		ErrorVariables: map[string]interface{}{
			"internalErrorCode": string(stdErr.Code),
		},
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidQuery:
		return "validation"
	case ErrCodeWebhookTimeout:
		return "timeout"
	case ErrCodeWebhookHTTPError, ErrCodeWebhookUnreachable, ErrCodeResponseDecodeFailed:
		return "upstream"
	case ErrCodeCacheUnavailable:
		return "cache"
	default:
		return "internal"
	}
}
