package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode classifies failures across services, workers and the API.
type ErrorCode string

const (
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyDecided  ErrorCode = "ALREADY_DECIDED"
	ErrCodeInvalidDecision ErrorCode = "INVALID_DECISION"
	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"

	ErrCodeBatchInProgress    ErrorCode = "BATCH_IN_PROGRESS"
	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"
)

// StandardError is the single error shape surfaced by services, workers and the HTTP API.
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

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches diagnostic context (record id, stage) and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// BPMNError is a StandardError shaped for a zeebe ThrowError command.
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

// ToErrorVariables returns the variables attached to the thrown error.
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

// NewValidationError reports malformed input. Not retryable.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Metadata:  map[string]interface{}{"resource": resource, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyDecidedError reports a decision on a record that is no longer pending.
func NewAlreadyDecidedError(matchRecordID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyDecided,
		Message:   "Match record already decided",
		Details:   fmt.Sprintf("matchRecordId: %s, status: %s", matchRecordID, status),
		Retryable: false,
		Metadata:  map[string]interface{}{"matchRecordId": matchRecordID, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidDecisionError reports a decision the record cannot take.
func NewInvalidDecisionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDecision,
		Message:   "Decision not allowed for this match record",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamTimeoutError reports an exceeded deadline at stage. Retryable.
func NewUpstreamTimeoutError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   fmt.Sprintf("Stage '%s' exceeded its deadline", stage),
		Details:   errString(err),
		Retryable: true,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected failure at stage.
func NewInternalError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   fmt.Sprintf("Unexpected failure in stage '%s'", stage),
		Details:   errString(err),
		Retryable: false,
		Metadata:  map[string]interface{}{"stage": stage},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewBatchInProgressError reports that another run holds the reconcile lock.
func NewBatchInProgressError() *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchInProgress,
		Message:   "A reconciliation batch is already running",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventPublishFailedError reports a sink that rejected an event.
func NewEventPublishFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPublishFailed,
		Message:   fmt.Sprintf("Publishing to '%s' failed", sink),
		Details:   errString(err),
		Retryable: true,
		Metadata:  map[string]interface{}{"sink": sink},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// FromContext classifies a failure raised while talking to a store or search backend.
// Deadline and cancellation errors become UPSTREAM_TIMEOUT, StandardErrors pass through,
// everything else is INTERNAL_ERROR.
func FromContext(stage string, err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return NewUpstreamTimeoutError(stage, err)
	}
	return NewInternalError(stage, err)
}

// CodeOf returns the code of the first StandardError in err's chain, or "" when none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:         "VALIDATION_ERROR",
	ErrCodeNotFound:           "NOT_FOUND",
	ErrCodeAlreadyDecided:     "ALREADY_DECIDED",
	ErrCodeInvalidDecision:    "INVALID_DECISION",
	ErrCodeUpstreamTimeout:    "UPSTREAM_TIMEOUT",
	ErrCodeInternal:           "INTERNAL_ERROR",
	ErrCodeBatchInProgress:    "BATCH_IN_PROGRESS",
	ErrCodeEventPublishFailed: "EVENT_PUBLISH_FAILED",
}

// GetRetryCount returns the job retries granted to a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUpstreamTimeout, ErrCodeEventPublishFailed:
		return 3
	case ErrCodeBatchInProgress:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to BPMNError
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// GetErrorCategory groups codes for logging.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DECIDED") || strings.Contains(codeStr, "DECISION"):
		return "REVIEW"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "EVENT"):
		return "ALERTING"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	default:
		return "OTHER"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
