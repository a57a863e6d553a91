package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourcesMissingError(t *testing.T) {
	err := NewSourcesMissingError([]string{"investments", "bank_market"})

	assert.Equal(t, ErrCodeSourcesMissing, err.Code)
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Details, "investments, bank_market")
	assert.Equal(t, 0, GetRetryCount(err.Code))
}

func TestNewRelayDeliveryFailedError(t *testing.T) {
	t.Run("status only", func(t *testing.T) {
		err := NewRelayDeliveryFailedError("http://relay/receive", 502, nil)
		assert.Equal(t, ErrCodeRelayDeliveryFail, err.Code)
		assert.True(t, err.Retryable)
		assert.Contains(t, err.Details, "status: 502")
		assert.Equal(t, 502, err.Metadata["statusCode"])
	})

	t.Run("transport error", func(t *testing.T) {
		err := NewRelayDeliveryFailedError("http://relay/receive", 0, fmt.Errorf("connection refused"))
		assert.Contains(t, err.Details, "connection refused")
	})
}

func TestAsStandard(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", NewSourcesMissingError([]string{"profiles"}))

	stdErr := AsStandard(wrapped)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeSourcesMissing, stdErr.Code)
	assert.True(t, HasCode(wrapped, ErrCodeSourcesMissing))

	plain := AsStandard(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.False(t, HasCode(fmt.Errorf("boom"), ErrCodeInternal))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodeSourcesMissing, http.StatusInternalServerError},
		{ErrCodeSourceParseFailed, http.StatusInternalServerError},
		{ErrCodeSourceQueryFailed, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewSourceQueryFailedError("profiles", fmt.Errorf("timeout")))

	assert.Equal(t, "SOURCE_QUERY_FAILED", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "SOURCE_QUERY_FAILED", vars["errorCode"])
	assert.Equal(t, "SOURCE_QUERY_FAILED", vars["originalErrorCode"])

	nonRetry := ConvertToBPMNError(NewInvalidRequestError("uuids must be a list"))
	assert.Equal(t, 0, nonRetry.Retries)
	assert.False(t, nonRetry.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SOURCES", GetErrorCategory(ErrCodeSourcesMissing))
	assert.Equal(t, "RELAY", GetErrorCategory(ErrCodeRelayDeliveryFail))
	assert.Equal(t, "SNAPSHOT", GetErrorCategory(ErrCodeSnapshotWrite))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidRequest))
	assert.Equal(t, "INTERNAL", GetErrorCategory(ErrCodeInternal))
}
