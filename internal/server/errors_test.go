package server

import (
	"errors"
	"net/http"
	"testing"

	metricsdomain "github.com/opencivic/muniva/internal/saasmetrics/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"invalid period", metricsdomain.ErrInvalidPeriod, http.StatusBadRequest, "invalid_request"},
		{"wrapped invalid range", errors.Join(errors.New("backfill"), metricsdomain.ErrInvalidRange), http.StatusBadRequest, "invalid_request"},
		{"invalid event", metricsdomain.ErrInvalidEvent, http.StatusBadRequest, "invalid_request"},
		{"snapshot missing", metricsdomain.ErrSnapshotNotFound, http.StatusNotFound, "not_found"},
		{"record missing", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"snapshot exists", metricsdomain.ErrSnapshotExists, http.StatusConflict, "conflict"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}

func TestMapError_ValidationErrors(t *testing.T) {
	status, payload := mapError(newValidationError("period", "invalid_period", "must be YYYY-MM"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Len(t, payload.Errors, 1)
	assert.Equal(t, "period", payload.Errors[0].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	class, kind := classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "server_error", class)
	assert.Equal(t, "internal_error", kind)

	class, kind = classifyErrorForLog(metricsdomain.ErrInvalidPeriod)
	assert.Equal(t, "client_error", class)
	assert.Equal(t, "invalid_request", kind)
}
