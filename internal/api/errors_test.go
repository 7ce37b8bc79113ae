package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/generation"
	"pbassistant/backend/internal/service"
	"pbassistant/backend/internal/storage"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: raceDate is required", domain.ErrInvalidInput), http.StatusBadRequest},
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrNoPlan, http.StatusNotFound},
		{service.ErrWorkoutNotFound, http.StatusNotFound},
		{storage.ErrArchiveDisabled, http.StatusNotFound},
		{service.ErrPlanAccessDenied, http.StatusForbidden},
		{service.ErrWorkoutAccessDenied, http.StatusForbidden},
		{fmt.Errorf("%w: draft to failed", domain.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("%w: no weeks", domain.ErrMalformedPlan), http.StatusUnprocessableEntity},
		{&generation.ProviderError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			respondError(c, tt.err)
			assert.Equal(t, tt.code, rec.Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondError(c, errors.New("pq: connection refused"))
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.Len(t, c.Errors, 1)
}
