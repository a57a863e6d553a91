package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeSourcesMissing     ErrorCode = "SOURCES_MISSING"
	ErrCodeSourceParseFailed  ErrorCode = "SOURCE_PARSE_FAILED"
	ErrCodeSourceQueryFailed  ErrorCode = "SOURCE_QUERY_FAILED"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeRelayDeliveryFail  ErrorCode = "RELAY_DELIVERY_FAILED"
	ErrCodeRelaySigningFailed ErrorCode = "RELAY_SIGNING_FAILED"
	ErrCodeSnapshotWrite      ErrorCode = "SNAPSHOT_WRITE_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

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

// NewSourcesMissingError reports that one or more of the four required sources
// could not be located. Retrying without operator action fails identically.
func NewSourcesMissingError(missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourcesMissing,
		Message:   "Required lendee sources were not found",
		Details:   fmt.Sprintf("missing: %s", strings.Join(missing, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"missing": missing},
		Timestamp: time.Now().UTC(),
	}
}

func NewSourceParseFailedError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceParseFailed,
		Message:   "Lendee source could not be parsed",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSourceQueryFailedError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceQueryFailed,
		Message:   "Lendee source query failed",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "missing or invalid uuids list",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRelayDeliveryFailedError is a soft failure: the score mapping was computed
// but delivery to the relay was not confirmed. statusCode is 0 when no response arrived.
func NewRelayDeliveryFailedError(url string, statusCode int, err error) *StandardError {
	details := fmt.Sprintf("url: %s, status: %d", url, statusCode)
	if err != nil {
		details = fmt.Sprintf("url: %s, error: %s", url, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeRelayDeliveryFail,
		Message:   "Relay delivery was not confirmed",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

func NewRelaySigningFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRelaySigningFailed,
		Message:   "Relay payload could not be serialized",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSnapshotWriteFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSnapshotWrite,
		Message:   fmt.Sprintf("Feature snapshot '%s' write failed", sink),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeSourcesMissing:     "SOURCES_MISSING",
	ErrCodeSourceParseFailed:  "SOURCE_PARSE_FAILED",
	ErrCodeSourceQueryFailed:  "SOURCE_QUERY_FAILED",
	ErrCodeInvalidRequest:     "INVALID_REQUEST",
	ErrCodeRelayDeliveryFail:  "RELAY_DELIVERY_FAILED",
	ErrCodeRelaySigningFailed: "RELAY_SIGNING_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSourceQueryFailed:
		return 3
	default:
		return 0 // sources missing, bad input: no retry
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SOURCE"):
		return "SOURCES"
	case strings.HasPrefix(codeStr, "RELAY"):
		return "RELAY"
	case strings.HasPrefix(codeStr, "SNAPSHOT"):
		return "SNAPSHOT"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps an error code onto the status the front end answers with.
// Computation failures are server-side; malformed requests are client errors.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeSourceQueryFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsStandard unwraps err into a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}
