package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/persona-insights/pkg/analytics"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteErrorMessage_IncludesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-1")

	WriteErrorMessage(w, http.StatusNotFound, "resource not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "resource not found", body.Error)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestWriteAccepted(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteAccepted(w, map[string]string{"id": "s1"}))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: months", analytics.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("creator analytics c1: %w", analytics.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: c1", analytics.ErrCreatorProfileMissing), http.StatusNotFound},
		{analytics.ErrSnapshotUnavailable, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteAnalyticsError(t *testing.T) {
	t.Run("client errors keep their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteAnalyticsError(w, fmt.Errorf("%w: user id is required", analytics.ErrInvalidArgument))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "user id is required")
	})

	t.Run("server errors are masked", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteAnalyticsError(w, errors.New("pq: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pq:")
		assert.Contains(t, w.Body.String(), "internal server error")
	})
}
